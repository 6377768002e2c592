package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/ayurshop/internal/cart"
	"github.com/hitoshi/ayurshop/internal/model"
)

func orderValues(productName, price string) url.Values {
	return url.Values{
		"product_name":   {productName},
		"product_price":  {price},
		"customer_name":  {"Asha K"},
		"email":          {"asha@example.com"},
		"phone":          {"0123"},
		"address":        {"12 Lotus Lane"},
		"payment_method": {"cod"},
	}
}

// --- アクセス制御 ---

func TestShopRoutes_Anonymous_RedirectToLogin(t *testing.T) {
	paths := []string{"/", "/products", "/search?query=aloe", "/cart", "/checkout",
		"/add_to_cart/Ghar%20Soap", "/buy_now/Ghar%20Soap", "/thank_you"}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			env := newTestEnv(t, nil)
			w := env.get(path)

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/login", location(w))
			assert.Zero(t, env.sessions.saves, "no state change for anonymous requests")
		})
	}
}

func TestShopHandler_PlaceOrder_Anonymous_NoOrder(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.post("/place_order", orderValues(cart.CartItemsSentinel, ""))

	assert.Equal(t, "/login", location(w))
	assert.Empty(t, env.orders.orders)
}

// --- 閲覧 ---

func TestShopHandler_Home(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/?error=ACCESS_DENIED")

	require.Equal(t, http.StatusOK, w.Code)
	var body homeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "Asha", body.UserName)
	assert.False(t, body.IsAdmin)
	assert.Equal(t, "ACCESS_DENIED", body.Error)
}

func TestShopHandler_HomeRedirect(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/home")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", location(w))
}

func TestShopHandler_Products_ReturnsCatalog(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/products")

	require.Equal(t, http.StatusOK, w.Code)
	var body productsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Len(t, body.Products, 7)
}

func TestShopHandler_Search(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"aloe", []string{"Aloe Vera Gel", "Aloe Allen Juice"}},
		{"HAIR", []string{"Ayur Herbal Shampoo"}},
		{"no-such-thing", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			env := newTestEnv(t, customerSession())

			w := env.get("/search?query=" + url.QueryEscape(tt.query))

			require.Equal(t, http.StatusOK, w.Code)
			var body productsResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			names := make([]string, 0, len(body.Products))
			for _, p := range body.Products {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

// --- カート ---

func TestShopHandler_AddToCart_AppendsCatalogCopy(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/add_to_cart/Aloe%20Vera%20Gel")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/products?notice=ADDED_TO_CART", location(w))
	assert.Equal(t, 1, env.sessions.saves)
	require.Len(t, env.sessions.current.Cart, 1)
	assert.Equal(t, "Aloe Vera Gel", env.sessions.current.Cart[0].Name)
	assert.True(t, env.sessions.current.Cart[0].Price.Equal(decimal.NewFromInt(180)))
}

func TestShopHandler_AddToCart_UnknownProduct(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/add_to_cart/Snake%20Oil")

	assert.Equal(t, "/products?error=PRODUCT_NOT_FOUND", location(w))
	assert.Empty(t, env.sessions.current.Cart)
	assert.Zero(t, env.sessions.saves)
}

func TestShopHandler_AddToCart_SaveFailure_Returns500(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.sessions.saveErr = errors.New("redis unavailable")

	w := env.get("/add_to_cart/Ghar%20Soap")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// 2回追加した商品を削除すると両方の行が消えること
func TestShopHandler_RemoveFromCart_RemovesAllLines(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")
	env.get("/add_to_cart/Ghar%20Soap")
	require.Len(t, env.sessions.current.Cart, 2)

	w := env.get("/remove_from_cart/Ghar%20Soap")

	assert.Equal(t, "/cart?notice=REMOVED_FROM_CART", location(w))
	assert.Empty(t, env.sessions.current.Cart)
}

func TestShopHandler_ClearCart(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")
	env.get("/add_to_cart/Eladi%20Oil")

	w := env.get("/clear_cart")

	assert.Equal(t, "/cart?notice=CART_CLEARED", location(w))
	assert.Empty(t, env.sessions.current.Cart)
}

func TestShopHandler_Cart_ReturnsItemsAndTotal(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")
	env.get("/add_to_cart/Eladi%20Oil")

	w := env.get("/cart")

	require.Equal(t, http.StatusOK, w.Code)
	var body cartResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Len(t, body.Items, 2)
	assert.True(t, body.Total.Equal(decimal.NewFromInt(470)), "total = %s", body.Total)
}

// --- 購入 ---

func TestShopHandler_Checkout_EmptyCart_RedirectsToProducts(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/checkout")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/products?error=CART_EMPTY", location(w))
}

func TestShopHandler_Checkout_CartMode(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Lotus%20Powder")

	w := env.get("/checkout")

	require.Equal(t, http.StatusOK, w.Code)
	var body checkoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, cart.ModeCart, body.Mode)
	assert.Equal(t, cart.CartItemsSentinel, body.ProductName)
	assert.True(t, body.Total.Equal(decimal.NewFromInt(120)))
}

func TestShopHandler_BuyNow(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/buy_now/Eladi%20Oil")

	require.Equal(t, http.StatusOK, w.Code)
	var body checkoutResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, cart.ModeSingle, body.Mode)
	assert.Equal(t, "Eladi Oil", body.ProductName)
	require.NotNil(t, body.Price)
	assert.True(t, body.Price.Equal(decimal.NewFromInt(400)))
}

func TestShopHandler_BuyNow_UnknownProduct_Returns404(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/buy_now/Snake%20Oil")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), model.ErrCodeProductNotFound)
}

// "Aloe Vera Gel"を追加してカート全体を購入すると、1明細・合計180の注文になること
func TestShopHandler_PlaceOrder_CartMode(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Aloe%20Vera%20Gel")

	w := env.post("/place_order", orderValues(cart.CartItemsSentinel, "180"))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/thank_you?order_id=1", location(w))

	require.Len(t, env.orders.orders, 1)
	order := env.orders.orders[0]
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Aloe Vera Gel", order.Items[0].Name)
	assert.True(t, order.Items[0].Price.Equal(decimal.NewFromInt(180)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, "Asha", order.UserName)
	assert.Equal(t, "Asha K", order.CustomerName)

	assert.Empty(t, env.sessions.current.Cart, "cart should be cleared after order")
}

func TestShopHandler_PlaceOrder_CartMode_EmptyCart_RedirectsToProducts(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.post("/place_order", orderValues(cart.CartItemsSentinel, ""))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/products?error=CART_EMPTY", location(w))
	assert.Empty(t, env.orders.orders)
}

func TestShopHandler_PlaceOrder_SingleMode(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")

	w := env.post("/place_order", orderValues("Eladi Oil", "400"))

	assert.Equal(t, "/thank_you?order_id=1", location(w))
	require.Len(t, env.orders.orders, 1)
	assert.Equal(t, "Eladi Oil", env.orders.orders[0].Items[0].Name)
}

func TestShopHandler_PlaceOrder_SingleMode_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		product  string
		price    string
		wantPath string
	}{
		{"unparseable price", "Ghar Soap", "abc", "/buy_now/Ghar%20Soap?error=INVALID_PRICE"},
		{"negative price", "Ghar Soap", "-70", "/buy_now/Ghar%20Soap?error=INVALID_PRICE"},
		{"tampered price", "Ghar Soap", "1", "/buy_now/Ghar%20Soap?error=PRICE_MISMATCH"},
		{"unknown product", "Snake Oil", "10", "/buy_now/Snake%20Oil?error=PRODUCT_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, customerSession())

			w := env.post("/place_order", orderValues(tt.product, tt.price))

			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.wantPath, location(w))
			assert.Empty(t, env.orders.orders)
		})
	}
}

func TestShopHandler_PlaceOrder_MissingFields_ValidationFailed(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")

	form := orderValues(cart.CartItemsSentinel, "")
	form.Set("address", "")
	w := env.post("/place_order", form)

	assert.Equal(t, "/checkout?error=VALIDATION_FAILED", location(w))
	assert.Empty(t, env.orders.orders)
	assert.Len(t, env.sessions.current.Cart, 1, "cart should be kept on failure")
}

// 電話番号は必須、メールアドレスは形式まで検証すること
func TestShopHandler_PlaceOrder_PhoneAndEmailRequired(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
	}{
		{name: "電話番号が空", field: "phone", value: ""},
		{name: "メールアドレスが空", field: "email", value: ""},
		{name: "メールアドレスの形式が不正", field: "email", value: "asha-at-example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, customerSession())
			env.get("/add_to_cart/Ghar%20Soap")

			form := orderValues(cart.CartItemsSentinel, "")
			form.Set(tt.field, tt.value)
			w := env.post("/place_order", form)

			assert.Equal(t, "/checkout?error=VALIDATION_FAILED", location(w))
			assert.Empty(t, env.orders.orders)
		})
	}
}

func TestShopHandler_PlaceOrder_LedgerFailure_Returns500AndKeepsCart(t *testing.T) {
	env := newTestEnv(t, customerSession())
	env.get("/add_to_cart/Ghar%20Soap")
	env.orders.appendFn = func(_ context.Context, _ *model.Order) (int64, error) {
		return 0, errors.New("db down")
	}

	w := env.post("/place_order", orderValues(cart.CartItemsSentinel, ""))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, env.sessions.current.Cart, 1)
}

func TestShopHandler_ThankYou(t *testing.T) {
	env := newTestEnv(t, customerSession())

	w := env.get("/thank_you?order_id=42")

	require.Equal(t, http.StatusOK, w.Code)
	var body thankYouResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, int64(42), body.OrderID)
	assert.NotEmpty(t, body.Message)
}
