package middleware

import (
	"fmt"
	"net/http"
	"time"
)

// SecurityHeadersConfig はセキュリティヘッダーの設定。
type SecurityHeadersConfig struct {
	// HSTSMaxAge が0より大きいとStrict-Transport-Securityを付与する。
	// BASE_URLがhttpsの場合のみ設定する。
	HSTSMaxAge time.Duration
}

// NewSecurityHeadersMiddleware はセキュリティ関連のレスポンスヘッダーを付与するミドルウェアを返す。
// 応答はJSONとリダイレクトだけなので、CSPは全リソースを拒否する。
func NewSecurityHeadersMiddleware(config SecurityHeadersConfig) func(next http.Handler) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "same-origin",
		"Permissions-Policy":      "camera=(), microphone=(), geolocation=(), payment=()",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'; form-action 'self'",
		"Cache-Control":           "no-store",
	}
	if config.HSTSMaxAge > 0 {
		headers["Strict-Transport-Security"] = fmt.Sprintf("max-age=%d; includeSubDomains", int64(config.HSTSMaxAge.Seconds()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
