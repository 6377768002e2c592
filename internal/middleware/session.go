// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

const (
	// LoginPath は未ログイン時のリダイレクト先。
	LoginPath = "/login"
	// HomePath は権限不足時のリダイレクト先。
	HomePath = "/"
)

// SessionLoader はリクエストからセッションを読み込むインターフェース。
// session.Managerが実装する。
type SessionLoader interface {
	Load(r *http.Request) (*session.Session, error)
}

// NewSessionMiddleware はリクエストに紐づくセッションを読み込み、
// リクエストコンテキストに注入するミドルウェアを返す。
// セッションが存在しない場合も空のセッションを注入する（ログイン要否は判定しない）。
// セッションストアの障害時は500を返す。
func NewSessionMiddleware(loader SessionLoader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := loader.Load(r)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}

// RequireLogin は未ログインのリクエストをログイン画面へリダイレクトするミドルウェア。
// NewSessionMiddlewareの後に配置する。
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := SessionFromContext(r.Context())
		if err != nil || !sess.Authenticated() {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin は管理者以外のリクエストをトップページへリダイレクトするミドルウェア。
// RequireLoginの後に配置する。注文データは一切返さない。
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := SessionFromContext(r.Context())
		if err != nil || !sess.IsAdmin() {
			userID := int64(0)
			if sess != nil {
				userID = sess.UserID
			}
			slog.Warn("admin access denied",
				slog.Int64("user_id", userID),
				slog.String("path", r.URL.Path),
			)
			http.Redirect(w, r, WithQuery(HomePath, "error", model.ErrCodeAccessDenied), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*session.Session, error) {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok || sess == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return sess, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// UserIDFromContext はログイン中のユーザーIDを文字列で返す。
// 未ログインの場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	sess, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	if !sess.Authenticated() {
		return "", fmt.Errorf("user ID not found in context")
	}
	return strconv.FormatInt(sess.UserID, 10), nil
}

// WithQuery はパスにクエリパラメータを1つ付与したURLを返す。
func WithQuery(path, key, value string) string {
	return path + "?" + url.Values{key: []string{value}}.Encode()
}
