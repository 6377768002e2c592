package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/hitoshi/ayurshop/internal/auth"
	"github.com/hitoshi/ayurshop/internal/cart"
	"github.com/hitoshi/ayurshop/internal/ledger"
	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/security"
	"github.com/hitoshi/ayurshop/internal/session"
)

// --- モック定義 ---

// fakeSessions はブラウザ1つ分のセッションを保持するSessionStore。
type fakeSessions struct {
	mu        sync.Mutex
	current   *session.Session
	saves     int
	renews    int
	destroyed bool
	loadErr   error
	saveErr   error
}

func newFakeSessions(sess *session.Session) *fakeSessions {
	if sess == nil {
		sess = &session.Session{Data: session.Data{Cart: []model.CartLine{}}}
	}
	if sess.Cart == nil {
		sess.Cart = []model.CartLine{}
	}
	return &fakeSessions{current: sess}
}

func (f *fakeSessions) Load(_ *http.Request) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.current, nil
}

func (f *fakeSessions) Save(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if s.ID == "" {
		s.ID = "renewed-session"
	}
	f.saves++
	f.current = s
	return nil
}

func (f *fakeSessions) Renew(_ *http.Request, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renews++
	s.ID = ""
	return nil
}

func (f *fakeSessions) Destroy(_ http.ResponseWriter, _ *http.Request, s *session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	s.ID = ""
	s.Reset()
	return nil
}

var _ SessionStore = (*fakeSessions)(nil)

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (int64, error)
	loginFn    func(ctx context.Context, email, password string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (int64, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return 1, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

// recordingAppender は追記された注文を記録するOrderAppender。
type recordingAppender struct {
	orders   []*model.Order
	appendFn func(ctx context.Context, order *model.Order) (int64, error)
}

func (m *recordingAppender) Append(ctx context.Context, order *model.Order) (int64, error) {
	if m.appendFn != nil {
		return m.appendFn(ctx, order)
	}
	m.orders = append(m.orders, order)
	order.ID = int64(len(m.orders))
	return order.ID, nil
}

type mockLedgerService struct {
	listFn      func(ctx context.Context, filter ledger.ListFilter) ([]model.Order, error)
	aggregateFn func(ctx context.Context) (*model.LedgerSummary, error)
	clearAllFn  func(ctx context.Context) (int64, error)
	listCalls   []ledger.ListFilter
	cleared     bool
}

func (m *mockLedgerService) List(ctx context.Context, filter ledger.ListFilter) ([]model.Order, error) {
	m.listCalls = append(m.listCalls, filter)
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []model.Order{}, nil
}

func (m *mockLedgerService) Aggregate(ctx context.Context) (*model.LedgerSummary, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx)
	}
	return &model.LedgerSummary{TopCustomers: []model.CustomerOrderCount{}}, nil
}

func (m *mockLedgerService) ClearAll(ctx context.Context) (int64, error) {
	m.cleared = true
	if m.clearAllFn != nil {
		return m.clearAllFn(ctx)
	}
	return 0, nil
}

var (
	_ AuthServiceInterface   = (*mockAuthService)(nil)
	_ LedgerServiceInterface = (*mockLedgerService)(nil)
	_ cart.OrderAppender     = (*recordingAppender)(nil)
)

// --- テスト用ルーター ---

const testCSRFToken = "test-csrf-token"

type testEnv struct {
	router   http.Handler
	sessions *fakeSessions
	auth     *mockAuthService
	orders   *recordingAppender
	ledger   *mockLedgerService
}

// newTestEnv は指定セッションを持つブラウザからのリクエストを処理するルーターを構築する。
func newTestEnv(t *testing.T, sess *session.Session) *testEnv {
	t.Helper()

	env := &testEnv{
		sessions: newFakeSessions(sess),
		auth:     &mockAuthService{},
		orders:   &recordingAppender{},
		ledger:   &mockLedgerService{},
	}
	sanitizer := security.NewTextSanitizer()

	env.router = NewRouter(&RouterDeps{
		Sessions:      env.sessions,
		CSRFConfig:    middleware.CSRFConfig{},
		AuthService:   env.auth,
		Sanitizer:     sanitizer,
		CartService:   cart.NewService(env.orders, sanitizer, nil),
		LedgerService: env.ledger,
		HealthChecks:  map[string]HealthChecker{},
	})
	return env
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

// post はCSRFトークン付きでフォームを送信する。
func (e *testEnv) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postWithoutCSRF(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func customerSession() *session.Session {
	return &session.Session{ID: "sess-customer", Data: session.Data{
		UserID: 7, UserName: "Asha", Role: model.RoleCustomer, Cart: []model.CartLine{},
	}}
}

func adminSession() *session.Session {
	return &session.Session{ID: "sess-admin", Data: session.Data{
		UserID: 1, UserName: "Owner", Role: model.RoleAdmin, Cart: []model.CartLine{},
	}}
}

func location(w *httptest.ResponseRecorder) string {
	return w.Result().Header.Get("Location")
}
