// Package cart はセッション内カートの操作と、カートから注文への確定処理を提供する。
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/ayurshop/internal/catalog"
	"github.com/hitoshi/ayurshop/internal/metrics"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/security"
	"github.com/hitoshi/ayurshop/internal/session"
)

// CartItemsSentinel は購入フォームの商品名がこの値の場合にカート全体を注文することを示す。
const CartItemsSentinel = "Cart Items"

// 購入モード（メトリクスのラベルにも使用）
const (
	ModeCart   = "cart"
	ModeSingle = "single"
)

// CheckoutForm は購入フォームの入力。
type CheckoutForm struct {
	ProductName   string
	Price         string
	CustomerName  string
	Email         string
	Phone         string
	Address       string
	PaymentMethod string
}

// Mode はフォームが指定する購入モードを返す。
func (f CheckoutForm) Mode() string {
	if f.ProductName == CartItemsSentinel {
		return ModeCart
	}
	return ModeSingle
}

// OrderAppender は注文台帳への追記インターフェース。
type OrderAppender interface {
	Append(ctx context.Context, order *model.Order) (int64, error)
}

// Service はカート操作と注文確定のビジネスロジックを提供する。
type Service struct {
	ledger    OrderAppender
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(ledger OrderAppender, sanitizer security.TextSanitizer, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		ledger:    ledger,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Add はカタログから商品名の完全一致で商品を探し、そのコピーをカートに追加する。
// 同じ商品を複数回追加すると、その回数分の行が追加される。
func (s *Service) Add(sess *session.Session, productName string) error {
	p, ok := catalog.Find(productName)
	if !ok {
		return model.NewProductNotFoundError(productName)
	}
	sess.Cart = append(sess.Cart, model.CartLine{Name: p.Name, Price: p.Price})
	return nil
}

// Remove は指定した商品名の行をすべてカートから取り除く。該当行がなくてもエラーにしない。
func (s *Service) Remove(sess *session.Session, productName string) {
	kept := make([]model.CartLine, 0, len(sess.Cart))
	for _, line := range sess.Cart {
		if line.Name != productName {
			kept = append(kept, line)
		}
	}
	sess.Cart = kept
}

// Clear はカートを空にする。
func (s *Service) Clear(sess *session.Session) {
	sess.ClearCart()
}

// Total はカートの合計金額を返す。
func Total(lines []model.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Price)
	}
	return total
}

// Checkout は購入フォームから注文を確定し、台帳に追記する。
// 商品名がCartItemsSentinelの場合はカート全体を、それ以外は指定された1商品を注文する。
// 成功した場合はカートを空にする。失敗した場合はセッションを変更しない。
func (s *Service) Checkout(ctx context.Context, sess *session.Session, form CheckoutForm) (*model.Order, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}

	// 1. 購入モードに応じて明細を組み立てる
	mode := form.Mode()
	var (
		items []model.LineItem
		err   error
	)
	if mode == ModeCart {
		items, err = cartItems(sess.Cart)
	} else {
		items, err = singleItem(form.ProductName, form.Price)
	}
	if err != nil {
		return nil, err
	}

	// 2. 注文を組み立てて台帳に追記
	order := &model.Order{
		UserID:        sess.UserID,
		UserName:      sess.UserName,
		CustomerName:  s.clean(form.CustomerName),
		Email:         strings.TrimSpace(form.Email),
		Phone:         strings.TrimSpace(form.Phone),
		Address:       s.clean(form.Address),
		PaymentMethod: s.clean(form.PaymentMethod),
		Items:         items,
		Total:         model.SumLineItems(items),
		CreatedAt:     s.now(),
	}

	if _, err := s.ledger.Append(ctx, order); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	// 3. 永続化に成功した後でカートを空にする
	sess.ClearCart()
	s.metrics.RecordOrderPlaced(mode, order.Total)
	return order, nil
}

func (s *Service) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.Sanitize(v)
}

func cartItems(lines []model.CartLine) ([]model.LineItem, error) {
	if len(lines) == 0 {
		return nil, model.NewCartEmptyError()
	}
	items := make([]model.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.LineItem{Name: line.Name, Price: line.Price})
	}
	return items, nil
}

// singleItem は即時購入の1商品を検証する。
// 価格は0以上の10進数でなければならず、カタログ上の同名商品の価格と一致する必要がある。
func singleItem(name, rawPrice string) ([]model.LineItem, error) {
	price, err := ParsePrice(rawPrice)
	if err != nil {
		return nil, err
	}

	p, ok := catalog.Find(name)
	if !ok {
		return nil, model.NewProductNotFoundError(name)
	}
	if !p.Price.Equal(price) {
		return nil, model.NewPriceMismatchError(name)
	}

	return []model.LineItem{{Name: p.Name, Price: p.Price}}, nil
}

// ParsePrice はフォームの価格文字列を解釈する。
// 数値として解釈できない場合、または負の場合はINVALID_PRICEエラーを返す。
func ParsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || price.IsNegative() {
		return decimal.Zero, model.NewInvalidPriceError(raw)
	}
	return price, nil
}
