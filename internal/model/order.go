package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product はカタログ上の商品を表す。
type Product struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
}

// CartLine はセッション内カートの1行を表す。
// 数量は持たず、同じ商品を2回追加すると2行になる。
type CartLine struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// LineItem は注文に含まれる商品1件を表す。
type LineItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Order は確定済みの注文を表す。作成後は変更されない。
type Order struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	UserName      string          `json:"user_name"`
	CustomerName  string          `json:"customer_name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	PaymentMethod string          `json:"payment_method"`
	Items         []LineItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SumLineItems は明細の価格合計を返す。
func SumLineItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price)
	}
	return total
}

// CustomerOrderCount は顧客ごとの注文件数を表す。
type CustomerOrderCount struct {
	UserID     int64  `json:"user_id"`
	UserName   string `json:"user_name"`
	OrderCount int64  `json:"order_count"`
}

// LedgerSummary は管理ダッシュボード用の集計結果を表す。
type LedgerSummary struct {
	TotalOrders  int64                `json:"total_orders"`
	TotalRevenue decimal.Decimal      `json:"total_revenue"`
	TopCustomers []CustomerOrderCount `json:"top_customers"`
}
