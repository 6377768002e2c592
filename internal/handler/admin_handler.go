package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/ayurshop/internal/ledger"
	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/model"
)

const (
	adminDashboardPath = "/admin_dashboard"

	// RecentOrderLimit はダッシュボードに表示する直近注文の件数。
	RecentOrderLimit = 5

	// NoticeOrdersCleared は注文一括削除後のnoticeコード。
	NoticeOrdersCleared = "ORDERS_CLEARED"
)

// LedgerServiceInterface は管理ハンドラーが必要とする注文台帳サービスインターフェース。
type LedgerServiceInterface interface {
	List(ctx context.Context, filter ledger.ListFilter) ([]model.Order, error)
	Aggregate(ctx context.Context) (*model.LedgerSummary, error)
	ClearAll(ctx context.Context) (int64, error)
}

// adminOrdersResponse は全注文一覧のレスポンス。
type adminOrdersResponse struct {
	Orders []model.Order `json:"orders"`
}

// dashboardResponse は管理ダッシュボードのレスポンス。
// Searchが空の場合、RecentOrdersは直近RecentOrderLimit件。
type dashboardResponse struct {
	TotalOrders  int64                      `json:"total_orders"`
	TotalRevenue decimal.Decimal            `json:"total_revenue"`
	TopCustomers []model.CustomerOrderCount `json:"top_customers"`
	RecentOrders []model.Order              `json:"recent_orders"`
	Search       string                     `json:"search,omitempty"`
	Notice       string                     `json:"notice,omitempty"`
	CSRFToken    string                     `json:"csrf_token,omitempty"`
}

// AdminHandler は管理者向けのHTTPハンドラー。
// ルーティング側でRequireLogin・RequireAdminを適用すること。
type AdminHandler struct {
	ledger LedgerServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(ledgerService LedgerServiceInterface) *AdminHandler {
	return &AdminHandler{ledger: ledgerService}
}

// Orders は全注文を新しい順に返す。
// GET /admin_orders
func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.List(r.Context(), ledger.ListFilter{})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adminOrdersResponse{Orders: nonNilOrders(orders)})
}

// Dashboard は集計結果と、直近の注文または検索にマッチした注文を返す。
// GET /admin_dashboard?search=
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	summary, err := h.ledger.Aggregate(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filter := ledger.ListFilter{Limit: RecentOrderLimit}
	if search != "" {
		filter = ledger.ListFilter{Query: search}
	}
	orders, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	topCustomers := summary.TopCustomers
	if topCustomers == nil {
		topCustomers = []model.CustomerOrderCount{}
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		TotalOrders:  summary.TotalOrders,
		TotalRevenue: summary.TotalRevenue,
		TopCustomers: topCustomers,
		RecentOrders: nonNilOrders(orders),
		Search:       search,
		Notice:       r.URL.Query().Get("notice"),
		CSRFToken:    middleware.CSRFToken(r.Context()),
	})
}

// ClearOrders は全注文を削除してダッシュボードへリダイレクトする。取り消しはできない。
// POST /admin_clear_orders
func (h *AdminHandler) ClearOrders(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ledger.ClearAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	redirectWithNotice(w, r, adminDashboardPath, NoticeOrdersCleared)
}

func nonNilOrders(orders []model.Order) []model.Order {
	if orders == nil {
		return []model.Order{}
	}
	return orders
}
