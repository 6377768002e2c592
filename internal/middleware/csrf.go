package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ayurshop/internal/model"
)

const (
	// csrfCookieName はフォーム描画側がJavaScriptで読むためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"

	defaultCSRFMaxAge = 86400
)

var csrfContextKey = contextKey("csrf")

// CSRFConfig はCSRFトークンCookieの設定。
// MaxAgeが0の場合は24時間。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int
}

// csrfState はリクエスト中の現在のトークン。ログイン時の再発行で差し替わる。
type csrfState struct {
	config CSRFConfig
	token  string
}

// NewCSRFMiddleware はDouble Submit Cookie方式のCSRF対策ミドルウェアを返す。
// GET等の安全なメソッドは検証しない。それ以外はCookieのトークンと、
// X-CSRF-Tokenヘッダーまたはcsrf_tokenフォーム値の一致を要求する。
// 通過したリクエストのコンテキストには現在のトークンが入る。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	if config.MaxAge <= 0 {
		config.MaxAge = defaultCSRFMaxAge
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cookieToken(r)

			if !isSafeMethod(r.Method) {
				if reason := verifySubmittedToken(r, token); reason != "" {
					rejectCSRF(w, r, reason)
					return
				}
			}

			state := &csrfState{config: config, token: token}
			if state.token == "" {
				if err := state.issue(w); err != nil {
					slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					WriteInternalServerError(w)
					return
				}
			}

			ctx := context.WithValue(r.Context(), csrfContextKey, state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFToken はリクエストに紐づくCSRFトークンを返す。
// CSRFミドルウェアを通っていない場合は空文字列。
func CSRFToken(ctx context.Context) string {
	if state, ok := ctx.Value(csrfContextKey).(*csrfState); ok {
		return state.token
	}
	return ""
}

// RotateCSRFToken はCSRFトークンを新しい値に差し替えてCookieを書き直す。
// ログイン・ログアウトなど権限が変わる時点で呼ぶ。
func RotateCSRFToken(w http.ResponseWriter, r *http.Request) error {
	state, ok := r.Context().Value(csrfContextKey).(*csrfState)
	if !ok {
		return nil
	}
	return state.issue(w)
}

// CSRFTokenHandler は現在のCSRFトークンを返す。
// GET /csrf-token
func CSRFTokenHandler(w http.ResponseWriter, r *http.Request) {
	token := CSRFToken(r.Context())
	if token == "" {
		slog.Error("csrf token requested outside CSRF middleware", slog.String("path", r.URL.Path))
		WriteInternalServerError(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

func (s *csrfState) issue(w http.ResponseWriter) error {
	token, err := generateCSRFToken()
	if err != nil {
		return err
	}
	s.token = token
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   s.config.CookieDomain,
		MaxAge:   s.config.MaxAge,
		HttpOnly: false,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(csrfCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// verifySubmittedToken は不一致の理由を返す。一致した場合は空文字列。
func verifySubmittedToken(r *http.Request, expected string) string {
	if expected == "" {
		return "missing cookie token"
	}
	submitted := r.Header.Get(csrfHeaderName)
	if submitted == "" {
		submitted = r.PostFormValue(csrfFormField)
	}
	switch {
	case submitted == "":
		return "missing submitted token"
	case subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1:
		return "token mismatch"
	}
	return ""
}

func rejectCSRF(w http.ResponseWriter, r *http.Request, reason string) {
	slog.Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteAPIError(w, model.NewCSRFError())
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
