package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/hitoshi/ayurshop/internal/model"
)

const (
	// CookieName はセッションIDを保持するCookieの名前。
	CookieName = "session_id"

	sessionIDValueKey = "sid"
)

// ManagerConfig はセッションマネージャーの設定。
type ManagerConfig struct {
	Secret       string // Cookie署名鍵
	MaxAge       int    // セッション有効期間（秒）
	CookieDomain string
	CookieSecure bool
}

// Manager はCookieとStoreを組み合わせてセッションを読み書きする。
type Manager struct {
	cookies *sessions.CookieStore
	store   Store
	config  ManagerConfig
}

// NewManager はManagerを生成する。
func NewManager(store Store, config ManagerConfig) *Manager {
	cookies := sessions.NewCookieStore([]byte(config.Secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		cookies: cookies,
		store:   store,
		config:  config,
	}
}

// Load はリクエストに紐づくセッションを読み込む。
// Cookieが無い、署名が不正、またはストアに存在しない場合は空の新規セッションを返す。
func (m *Manager) Load(r *http.Request) (*Session, error) {
	empty := &Session{Data: Data{Cart: []model.CartLine{}}}

	// 署名検証に失敗した場合も新規セッションとして扱う
	cookie, err := m.cookies.Get(r, CookieName)
	if err != nil {
		return empty, nil
	}

	id, _ := cookie.Values[sessionIDValueKey].(string)
	if id == "" {
		return empty, nil
	}

	data, err := m.store.Get(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if data == nil {
		return empty, nil
	}
	if data.Cart == nil {
		data.Cart = []model.CartLine{}
	}

	return &Session{ID: id, Data: *data}, nil
}

// Save はセッションをストアに保存し、セッションIDをCookieに書き込む。
// 未保存のセッションには新しいIDを採番する。
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	ttl := time.Duration(m.config.MaxAge) * time.Second
	if err := m.store.Set(r.Context(), s.ID, &s.Data, ttl); err != nil {
		return err
	}

	cookie, _ := m.cookies.Get(r, CookieName)
	cookie.Values[sessionIDValueKey] = s.ID
	if err := cookie.Save(r, w); err != nil {
		return fmt.Errorf("failed to write session cookie: %w", err)
	}
	return nil
}

// Renew はセッションIDを再発行する（セッション固定攻撃対策）。
// 旧IDのストア上のデータは削除され、次回Save時に新しいIDが採番される。
func (m *Manager) Renew(r *http.Request, s *Session) error {
	if s.ID != "" {
		if err := m.store.Delete(r.Context(), s.ID); err != nil {
			return err
		}
	}
	s.ID = ""
	return nil
}

// Destroy はセッションを破棄し、Cookieを失効させる。
// ストアからの削除に失敗した場合もセッション状態の消去とCookieの失効は行い、削除エラーを返す。
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	var deleteErr error
	if s.ID != "" {
		deleteErr = m.store.Delete(r.Context(), s.ID)
	}
	s.ID = ""
	s.Reset()

	cookie, _ := m.cookies.Get(r, CookieName)
	delete(cookie.Values, sessionIDValueKey)
	cookie.Options = &sessions.Options{
		Path:     "/",
		Domain:   m.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if err := cookie.Save(r, w); err != nil {
		return fmt.Errorf("failed to expire session cookie: %w", err)
	}
	if deleteErr != nil {
		return fmt.Errorf("failed to delete session: %w", deleteErr)
	}
	return nil
}
