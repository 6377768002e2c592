package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout は依存先1つあたりの疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker は依存先の疎通確認を行うインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthCheckFunc は関数をHealthCheckerとして扱うアダプタ。
type HealthCheckFunc func(ctx context.Context) error

// Ping はfを呼び出す。
func (f HealthCheckFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Component string `json:"component,omitempty"`
}

// HealthHandler は依存先（PostgreSQL、Redis）の疎通を確認するハンドラー。
type HealthHandler struct {
	checks map[string]HealthChecker
}

// NewHealthHandler はHealthHandlerを生成する。checksのキーはコンポーネント名。
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// ServeHTTP はすべての依存先に到達できれば200、いずれかに失敗すれば503を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check.Ping(ctx)
		cancel()
		if err != nil {
			slog.Warn("health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "error", Component: name})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
