package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/ayurshop/internal/cart"
	"github.com/hitoshi/ayurshop/internal/catalog"
	"github.com/hitoshi/ayurshop/internal/middleware"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/session"
)

const (
	productsPath = "/products"
	cartPath     = "/cart"
	checkoutPath = "/checkout"
	thankYouPath = "/thank_you"
)

// 画面遷移に使うnoticeコード
const (
	NoticeAddedToCart     = "ADDED_TO_CART"
	NoticeRemovedFromCart = "REMOVED_FROM_CART"
	NoticeCartCleared     = "CART_CLEARED"
)

// CartServiceInterface はショップハンドラーが必要とするカートサービスインターフェース。
type CartServiceInterface interface {
	Add(sess *session.Session, productName string) error
	Remove(sess *session.Session, productName string)
	Clear(sess *session.Session)
	Checkout(ctx context.Context, sess *session.Session, form cart.CheckoutForm) (*model.Order, error)
}

// SessionSaver はセッションを保存するインターフェース。
type SessionSaver interface {
	Save(w http.ResponseWriter, r *http.Request, s *session.Session) error
}

// placeOrderForm は購入フォームの入力。
type placeOrderForm struct {
	ProductName   string `form:"product_name" validate:"required"`
	Price         string `form:"product_price"`
	CustomerName  string `form:"customer_name" validate:"required,max=100"`
	Email         string `form:"email" validate:"required,email,max=254"`
	Phone         string `form:"phone" validate:"required,max=32"`
	Address       string `form:"address" validate:"required,max=500"`
	PaymentMethod string `form:"payment_method" validate:"required,max=50"`
}

// homeResponse はトップページのレスポンス。
type homeResponse struct {
	UserName  string `json:"user_name"`
	IsAdmin   bool   `json:"is_admin"`
	CartCount int    `json:"cart_count"`
	Error     string `json:"error,omitempty"`
	Notice    string `json:"notice,omitempty"`
}

// productsResponse は商品一覧のレスポンス。
type productsResponse struct {
	Products []model.Product `json:"products"`
	Query    string          `json:"query,omitempty"`
	Error    string          `json:"error,omitempty"`
	Notice   string          `json:"notice,omitempty"`
}

// cartResponse はカートのレスポンス。
type cartResponse struct {
	Items  []model.CartLine `json:"items"`
	Total  decimal.Decimal  `json:"total"`
	Notice string           `json:"notice,omitempty"`
}

// checkoutResponse は購入確認画面のレスポンス。
// ProductNameは購入フォームのproduct_nameにそのまま送り返す値。
type checkoutResponse struct {
	Mode        string           `json:"mode"`
	ProductName string           `json:"product_name"`
	Price       *decimal.Decimal `json:"product_price,omitempty"`
	Items       []model.CartLine `json:"items"`
	Total       decimal.Decimal  `json:"total"`
	Error       string           `json:"error,omitempty"`
	CSRFToken   string           `json:"csrf_token,omitempty"`
}

// thankYouResponse は注文完了画面のレスポンス。
type thankYouResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"order_id,omitempty"`
}

// ShopHandler は商品閲覧、カート、購入のHTTPハンドラー。
type ShopHandler struct {
	cart     CartServiceInterface
	sessions SessionSaver
	validate *validator.Validate
}

// NewShopHandler はShopHandlerを生成する。
func NewShopHandler(cartService CartServiceInterface, sessions SessionSaver) *ShopHandler {
	return &ShopHandler{
		cart:     cartService,
		sessions: sessions,
		validate: newValidator(),
	}
}

// Home はトップページを返す。
// GET /
func (h *ShopHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, homeResponse{
		UserName:  sess.UserName,
		IsAdmin:   sess.IsAdmin(),
		CartCount: len(sess.Cart),
		Error:     q.Get("error"),
		Notice:    q.Get("notice"),
	})
}

// HomeRedirect は旧トップページのパスをトップページへリダイレクトする。
// GET /home
func (h *ShopHandler) HomeRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, middleware.HomePath, http.StatusSeeOther)
}

// Products は全商品を返す。
// GET /products
func (h *ShopHandler) Products(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, productsResponse{
		Products: catalog.All(),
		Error:    q.Get("error"),
		Notice:   q.Get("notice"),
	})
}

// Search は商品名または説明に検索語を含む商品を返す。
// GET /search?query=
func (h *ShopHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	products := catalog.Search(query)
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, productsResponse{Products: products, Query: query})
}

// AddToCart は商品をカートに追加して商品一覧へリダイレクトする。
// GET /add_to_cart/{name}
func (h *ShopHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	if err := h.cart.Add(sess, productNameParam(r)); err != nil {
		redirectOnError(w, r, productsPath, err)
		return
	}
	if !h.save(w, r, sess) {
		return
	}

	redirectWithNotice(w, r, productsPath, NoticeAddedToCart)
}

// RemoveFromCart は指定商品の行をすべてカートから取り除く。
// GET /remove_from_cart/{name}
func (h *ShopHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	h.cart.Remove(sess, productNameParam(r))
	if !h.save(w, r, sess) {
		return
	}

	redirectWithNotice(w, r, cartPath, NoticeRemovedFromCart)
}

// ClearCart はカートを空にする。
// GET /clear_cart
func (h *ShopHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	h.cart.Clear(sess)
	if !h.save(w, r, sess) {
		return
	}

	redirectWithNotice(w, r, cartPath, NoticeCartCleared)
}

// Cart はカートの内容と合計を返す。
// GET /cart
func (h *ShopHandler) Cart(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{
		Items:  sess.Cart,
		Total:  cart.Total(sess.Cart),
		Notice: r.URL.Query().Get("notice"),
	})
}

// Checkout はカート全体の購入確認画面を返す。カートが空の場合は商品一覧へリダイレクトする。
// GET /checkout
func (h *ShopHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	if len(sess.Cart) == 0 {
		http.Redirect(w, r, middleware.WithQuery(productsPath, "error", model.ErrCodeCartEmpty), http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		Mode:        cart.ModeCart,
		ProductName: cart.CartItemsSentinel,
		Items:       sess.Cart,
		Total:       cart.Total(sess.Cart),
		Error:       r.URL.Query().Get("error"),
		CSRFToken:   middleware.CSRFToken(r.Context()),
	})
}

// BuyNow は1商品を即時購入する購入確認画面を返す。
// GET /buy_now/{name}
func (h *ShopHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	name := productNameParam(r)
	p, found := catalog.Find(name)
	if !found {
		middleware.WriteAPIError(w, model.NewProductNotFoundError(name))
		return
	}

	price := p.Price
	writeJSON(w, http.StatusOK, checkoutResponse{
		Mode:        cart.ModeSingle,
		ProductName: p.Name,
		Price:       &price,
		Items:       []model.CartLine{{Name: p.Name, Price: p.Price}},
		Total:       p.Price,
		Error:       r.URL.Query().Get("error"),
		CSRFToken:   middleware.CSRFToken(r.Context()),
	})
}

// PlaceOrder は購入フォームから注文を確定する。
// POST /place_order
// 成功した場合はカートを空にして注文完了画面へ、カートが空の場合は商品一覧へ、
// その他の入力エラーは購入確認画面へリダイレクトする。
func (h *ShopHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	form := placeOrderForm{
		ProductName:   formValue(r, "product_name"),
		Price:         formValue(r, "product_price"),
		CustomerName:  formValue(r, "customer_name"),
		Email:         formValue(r, "email"),
		Phone:         formValue(r, "phone"),
		Address:       formValue(r, "address"),
		PaymentMethod: formValue(r, "payment_method"),
	}
	input := cart.CheckoutForm{
		ProductName:   form.ProductName,
		Price:         form.Price,
		CustomerName:  form.CustomerName,
		Email:         form.Email,
		Phone:         form.Phone,
		Address:       form.Address,
		PaymentMethod: form.PaymentMethod,
	}
	back := checkoutFormPath(input)

	if err := validateForm(h.validate, form); err != nil {
		redirectOnError(w, r, back, err)
		return
	}

	order, err := h.cart.Checkout(r.Context(), sess, input)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeCartEmpty {
			back = productsPath
		}
		redirectOnError(w, r, back, err)
		return
	}

	// 注文は確定済みのため、セッション保存の失敗はログのみとする
	if err := h.sessions.Save(w, r, sess); err != nil {
		slog.Error("failed to save session after order",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	http.Redirect(w, r, middleware.WithQuery(thankYouPath, "order_id", strconv.FormatInt(order.ID, 10)), http.StatusSeeOther)
}

// ThankYou は注文完了画面を返す。
// GET /thank_you
func (h *ShopHandler) ThankYou(w http.ResponseWriter, r *http.Request) {
	resp := thankYouResponse{Message: "ご注文ありがとうございました。"}
	if id, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64); err == nil && id > 0 {
		resp.OrderID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

// save はセッションを保存する。失敗した場合は500を書き込みfalseを返す。
func (h *ShopHandler) save(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := h.sessions.Save(w, r, sess); err != nil {
		handleServiceError(w, err)
		return false
	}
	return true
}

// productNameParam はURLパスの商品名を取得する。
func productNameParam(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

// checkoutFormPath は購入フォームの送信元の購入確認画面のパスを返す。
func checkoutFormPath(form cart.CheckoutForm) string {
	if form.Mode() == cart.ModeCart || form.ProductName == "" {
		return checkoutPath
	}
	return "/buy_now/" + url.PathEscape(form.ProductName)
}
