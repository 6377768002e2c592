package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/ayurshop/internal/model"
)

// --- モック定義 ---

type memoryStore struct {
	mu        sync.Mutex
	data      map[string]Data
	ttls      map[string]time.Duration
	getErr    error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]Data{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, id string) (*Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.data[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *memoryStore) Set(_ context.Context, id string, data *Data, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = *data
	m.ttls[id] = ttl
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.data, id)
	return nil
}

var _ Store = (*memoryStore)(nil)

func newTestManager(store Store) *Manager {
	return NewManager(store, ManagerConfig{
		Secret: "test-secret-0123456789abcdef",
		MaxAge: 3600,
	})
}

// saveAndGetCookie は新規セッションを保存し、発行されたCookieを返す。
func saveAndGetCookie(t *testing.T, m *Manager, s *Session) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	require.NoError(t, m.Save(w, req, s))

	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("session cookie was not written")
	return nil
}

// --- テスト ---

func TestManager_Load_NoCookie_ReturnsEmptySession(t *testing.T) {
	m := newTestManager(newMemoryStore())

	s, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Empty(t, s.ID)
	assert.False(t, s.Authenticated())
	assert.NotNil(t, s.Cart)
}

func TestManager_SaveThenLoad_RoundTrip(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	s := &Session{Data: Data{UserID: 7, UserName: "Asha", Role: model.RoleCustomer}}
	s.Cart = append(s.Cart, model.CartLine{Name: "Ghar Soap", Price: decimal.NewFromInt(70)})
	cookie := saveAndGetCookie(t, m, s)

	require.NotEmpty(t, s.ID)
	assert.Equal(t, time.Hour, store.ttls[s.ID])

	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.AddCookie(cookie)
	loaded, err := m.Load(req)
	require.NoError(t, err)

	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, int64(7), loaded.UserID)
	require.Len(t, loaded.Cart, 1)
	assert.Equal(t, "Ghar Soap", loaded.Cart[0].Name)
}

func TestManager_Load_TamperedCookie_ReturnsEmptySession(t *testing.T) {
	m := newTestManager(newMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "not-a-signed-value"})

	s, err := m.Load(req)
	require.NoError(t, err)
	assert.Empty(t, s.ID)
}

func TestManager_Load_ExpiredInStore_ReturnsEmptySession(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	s := &Session{Data: Data{UserID: 1}}
	cookie := saveAndGetCookie(t, m, s)
	require.NoError(t, store.Delete(context.Background(), s.ID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	loaded, err := m.Load(req)
	require.NoError(t, err)
	assert.False(t, loaded.Authenticated())
}

func TestManager_Load_StoreError_ReturnsError(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	cookie := saveAndGetCookie(t, m, &Session{Data: Data{UserID: 1}})
	store.getErr = errors.New("connection refused")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	_, err := m.Load(req)
	assert.Error(t, err)
}

func TestManager_Renew_DeletesOldRecord(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	s := &Session{Data: Data{UserID: 1}}
	saveAndGetCookie(t, m, s)
	oldID := s.ID

	require.NoError(t, m.Renew(httptest.NewRequest(http.MethodGet, "/", nil), s))
	assert.Empty(t, s.ID)

	saveAndGetCookie(t, m, s)
	assert.NotEqual(t, oldID, s.ID)
	_, exists := store.data[oldID]
	assert.False(t, exists)
}

func TestManager_Destroy_ClearsStateAndExpiresCookie(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	s := &Session{Data: Data{UserID: 3, UserName: "Ravi", Role: model.RoleAdmin}}
	saveAndGetCookie(t, m, s)
	id := s.ID

	w := httptest.NewRecorder()
	require.NoError(t, m.Destroy(w, httptest.NewRequest(http.MethodGet, "/logout", nil), s))

	assert.False(t, s.Authenticated())
	assert.Empty(t, s.Cart)
	_, exists := store.data[id]
	assert.False(t, exists)

	var expired bool
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired, "session cookie should be expired")
}

// ストア障害時もセッション状態は消去され、Cookieは失効すること
func TestManager_Destroy_StoreError_StillExpiresCookie(t *testing.T) {
	store := newMemoryStore()
	m := newTestManager(store)

	s := &Session{Data: Data{UserID: 3, UserName: "Ravi"}}
	saveAndGetCookie(t, m, s)
	store.deleteErr = errors.New("redis unavailable")

	w := httptest.NewRecorder()
	err := m.Destroy(w, httptest.NewRequest(http.MethodGet, "/logout", nil), s)
	require.Error(t, err)

	assert.False(t, s.Authenticated())
	assert.Empty(t, s.ID)

	var expired bool
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired, "session cookie should be expired")
}

func TestSession_IsAdmin_RequiresLoginAndRole(t *testing.T) {
	assert.False(t, (&Session{Data: Data{Role: model.RoleAdmin}}).IsAdmin())
	assert.False(t, (&Session{Data: Data{UserID: 1, UserName: "Admin"}}).IsAdmin())
	assert.True(t, (&Session{Data: Data{UserID: 1, Role: model.RoleAdmin}}).IsAdmin())
}
