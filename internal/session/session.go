// Package session はブラウザセッションごとの状態（ログインユーザーとカート）を管理する。
//
// セッション本体はプロセス外のキーバリューストア（Redis）に保存し、
// ブラウザには署名付きCookieでセッションIDのみを渡す。
package session

import (
	"github.com/hitoshi/ayurshop/internal/model"
)

// Data はセッションに保存される値。
// UserIDが0の場合は未ログインを表す（users.idは1から採番される）。
type Data struct {
	UserID   int64            `json:"user_id,omitempty"`
	UserName string           `json:"user_name,omitempty"`
	Role     model.Role       `json:"role,omitempty"`
	Cart     []model.CartLine `json:"cart"`
}

// Session は1つのブラウザセッションを表す。
// IDが空の場合はまだストアに保存されていない新規セッション。
type Session struct {
	ID string
	Data
}

// Authenticated はログイン済みかどうかを返す。
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

// IsAdmin は管理者としてログインしているかどうかを返す。
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Role == model.RoleAdmin
}

// SetUser はログインユーザーをセッションに設定する。
func (s *Session) SetUser(u *model.User) {
	s.UserID = u.ID
	s.UserName = u.Name
	s.Role = u.Role
}

// ClearCart はカートを空にする。
func (s *Session) ClearCart() {
	s.Cart = []model.CartLine{}
}

// Reset はセッションの全状態を破棄する。
func (s *Session) Reset() {
	s.Data = Data{Cart: []model.CartLine{}}
}
