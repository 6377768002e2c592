// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/ayurshop/internal/auth"
	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/security"
	"github.com/hitoshi/ayurshop/internal/session"
)

// 画面遷移に使うnoticeコード
const (
	NoticeRegistered    = "REGISTERED"
	NoticeResetLinkSent = "RESET_LINK_SENT"
	NoticeLoggedOut     = "LOGGED_OUT"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (int64, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
}

// SessionManager はセッションの保存・再発行・破棄を行うインターフェース。
// session.Managerが実装する。
type SessionManager interface {
	Save(w http.ResponseWriter, r *http.Request, s *session.Session) error
	Renew(r *http.Request, s *session.Session) error
	Destroy(w http.ResponseWriter, r *http.Request, s *session.Session) error
}

// registerForm はユーザー登録フォームの入力。
type registerForm struct {
	Name     string `form:"name" validate:"required,max=100"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Phone    string `form:"phone" validate:"omitempty,max=32"`
	Password string `form:"password" validate:"required,max=72"`
}

// loginForm はログインフォームの入力。
type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	sessions  SessionManager
	sanitizer security.TextSanitizer
	validate  *validator.Validate
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions SessionManager, sanitizer security.TextSanitizer) *AuthHandler {
	return &AuthHandler{
		service:   service,
		sessions:  sessions,
		sanitizer: sanitizer,
		validate:  newValidator(),
	}
}

// RegisterForm は登録フォームの記述子を返す。
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFormDescriptor(r, "register", "/register", "name", "email", "phone", "password"))
}

// Register はユーザー登録を処理する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Name:     h.clean(r.PostFormValue("name")),
		Email:    formValue(r, "email"),
		Phone:    formValue(r, "phone"),
		Password: r.PostFormValue("password"),
	}
	if err := validateForm(h.validate, form); err != nil {
		redirectOnError(w, r, "/register", err)
		return
	}

	if _, err := h.service.Register(r.Context(), auth.RegisterInput{
		Name:     form.Name,
		Email:    form.Email,
		Phone:    form.Phone,
		Password: form.Password,
	}); err != nil {
		redirectOnError(w, r, "/register", err)
		return
	}

	redirectWithNotice(w, r, middleware.LoginPath, NoticeRegistered)
}

// LoginForm はログインフォームの記述子を返す。ログイン済みの場合はトップページへリダイレクトする。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if sess, err := middleware.SessionFromContext(r.Context()); err == nil && sess.Authenticated() {
		http.Redirect(w, r, middleware.HomePath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, newFormDescriptor(r, "login", "/login", "email", "password"))
}

// Login はログインを処理する。
// POST /login
// 認証とログイン監査ログの追記に成功した場合のみ、セッションIDを再発行してユーザーを設定する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	form := loginForm{
		Email:    formValue(r, "email"),
		Password: r.PostFormValue("password"),
	}
	if err := validateForm(h.validate, form); err != nil {
		redirectOnError(w, r, middleware.LoginPath, err)
		return
	}

	user, err := h.service.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		redirectOnError(w, r, middleware.LoginPath, err)
		return
	}

	// セッション固定攻撃対策としてIDを再発行する
	if err := h.sessions.Renew(r, sess); err != nil {
		handleServiceError(w, err)
		return
	}
	sess.SetUser(user)
	if err := h.sessions.Save(w, r, sess); err != nil {
		handleServiceError(w, err)
		return
	}
	if err := middleware.RotateCSRFToken(w, r); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, middleware.HomePath, http.StatusSeeOther)
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	// 破棄に失敗してもCookieは失効済みのためリダイレクトする
	if err := h.sessions.Destroy(w, r, sess); err != nil {
		slog.Error("failed to destroy session", slog.String("error", err.Error()))
	}
	if err := middleware.RotateCSRFToken(w, r); err != nil {
		slog.Error("failed to rotate CSRF token", slog.String("error", err.Error()))
	}

	redirectWithNotice(w, r, middleware.LoginPath, NoticeLoggedOut)
}

// ForgotPasswordForm はパスワード再設定フォームの記述子を返す。
// GET /forgot_password
func (h *AuthHandler) ForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newFormDescriptor(r, "forgot_password", "/forgot_password", "email"))
}

// ForgotPassword はパスワード再設定の受付のみを行う（メール送信は行わない）。
// アカウントの有無にかかわらず同じ応答を返す。
// POST /forgot_password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	slog.Info("password reset requested")
	redirectWithNotice(w, r, middleware.LoginPath, NoticeResetLinkSent)
}

func (h *AuthHandler) clean(v string) string {
	if h.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return h.sanitizer.Sanitize(v)
}

// requireSession はコンテキストからセッションを取得する。取得できない場合は500を書き込む。
func requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return sess, true
}

// newValidator はフォームのformタグをフィールド名として使うバリデーターを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
