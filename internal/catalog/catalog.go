// Package catalog は固定の商品カタログを提供する。
// カタログはプロセス起動時に構築され、変更経路を持たない。
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/ayurshop/internal/model"
)

var products = []model.Product{
	{Name: "Herbal Face Cream", Description: "Natural ingredients for glowing skin", Price: decimal.NewFromInt(250), Image: "images/herbalfacecream.jpg"},
	{Name: "Aloe Vera Gel", Description: "Soothes and hydrates the skin", Price: decimal.NewFromInt(180), Image: "images/aleovera.jpg"},
	{Name: "Ghar Soap", Description: "Pure herbal bathing soap", Price: decimal.NewFromInt(70), Image: "images/gharsoap.jpg"},
	{Name: "Lotus Powder", Description: "Skin brightening herbal powder", Price: decimal.NewFromInt(120), Image: "images/lotus.jpg"},
	{Name: "Ayur Herbal Shampoo", Description: "Gentle cleansing for hair", Price: decimal.NewFromInt(300), Image: "images/ayurherbal.jpg"},
	{Name: "Aloe Allen Juice", Description: "Detoxifying aloe vera juice", Price: decimal.NewFromInt(200), Image: "images/aloeallen.jpg"},
	{Name: "Eladi Oil", Description: "Traditional ayurvedic oil for skin", Price: decimal.NewFromInt(400), Image: "images/eladi.jpg"},
}

// All は全商品のコピーを返す。
func All() []model.Product {
	out := make([]model.Product, len(products))
	copy(out, products)
	return out
}

// Find は商品名の完全一致で商品を検索する。
func Find(name string) (model.Product, bool) {
	for _, p := range products {
		if p.Name == name {
			return p, true
		}
	}
	return model.Product{}, false
}

// Search は商品名または説明に検索語を含む商品を返す（大文字小文字を区別しない）。
// 検索語が空の場合は全商品を返す。
func Search(query string) []model.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return All()
	}

	var out []model.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return out
}
