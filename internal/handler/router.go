package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/ayurshop/internal/metrics"
	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/security"
)

// SessionStore はルーターが必要とするセッション操作をまとめたインターフェース。
// session.Managerが実装する。
type SessionStore interface {
	middleware.SessionLoader
	SessionManager
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          SessionStore
	CSRFConfig        middleware.CSRFConfig
	SecurityHeaders   middleware.SecurityHeadersConfig
	CORSAllowedOrigin string
	TrustProxy        bool
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecks   map[string]HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	Sanitizer   security.TextSanitizer

	// ショップ
	CartService CartServiceInterface

	// 管理
	LedgerService LedgerServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → RealIP（TrustProxy時のみ） → RequestID → CORS → Metrics
//	  → LoadSession → Logging → CSRF
//	    → RequireLogin → RateLimit(General) → RequireAdmin（管理ルートのみ）
//
// /health と /metrics はセッションを読み込まない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecurityHeaders))
	// 転送ヘッダは偽装できるため、プロキシ配下でなければRemoteAddrをそのまま使う
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.RequestID)
	if deps.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	}
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.Sanitizer)
	shopHandler := NewShopHandler(deps.CartService, deps.Sessions)
	adminHandler := NewAdminHandler(deps.LedgerService)

	// --- 運用エンドポイント ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- セッションを扱うルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/csrf-token", middleware.CSRFTokenHandler)

		// 認証不要のルート
		r.Get("/register", authHandler.RegisterForm)
		r.With(loginLimit(deps.RateLimiter)...).Post("/register", authHandler.Register)
		r.Get("/login", authHandler.LoginForm)
		r.With(loginLimit(deps.RateLimiter)...).Post("/login", authHandler.Login)
		r.Get("/forgot_password", authHandler.ForgotPasswordForm)
		r.Post("/forgot_password", authHandler.ForgotPassword)

		// ログインが必要なルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireLogin)
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.GeneralMiddleware())
			}

			r.Get("/logout", authHandler.Logout)

			r.Get("/", shopHandler.Home)
			r.Get("/home", shopHandler.HomeRedirect)
			r.Get("/products", shopHandler.Products)
			r.Get("/search", shopHandler.Search)
			r.Get("/add_to_cart/{name}", shopHandler.AddToCart)
			r.Get("/remove_from_cart/{name}", shopHandler.RemoveFromCart)
			r.Get("/clear_cart", shopHandler.ClearCart)
			r.Get("/cart", shopHandler.Cart)
			r.Get("/checkout", shopHandler.Checkout)
			r.Get("/buy_now/{name}", shopHandler.BuyNow)
			r.Post("/place_order", shopHandler.PlaceOrder)
			r.Get("/thank_you", shopHandler.ThankYou)

			// 管理者ルート
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/admin_orders", adminHandler.Orders)
				r.Get("/admin_dashboard", adminHandler.Dashboard)
				r.Post("/admin_clear_orders", adminHandler.ClearOrders)
			})
		})
	})

	return r
}

// loginLimit はログイン・登録フォーム送信用のレート制限ミドルウェアを返す。
func loginLimit(rl *middleware.RateLimiter) []func(http.Handler) http.Handler {
	if rl == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{rl.LoginMiddleware()}
}
