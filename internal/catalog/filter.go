package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortPriceAsc  SortKey = "price-asc"
	SortPriceDesc SortKey = "price-desc"
	SortNameAsc   SortKey = "name-asc"
)

// AllCategories is what the category selector sends for "no restriction".
const AllCategories = "all"

func ParseSort(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortPriceAsc, SortPriceDesc, SortNameAsc:
		return k
	default:
		return SortRelevance
	}
}

type Filter struct {
	Category string
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	// Stores holds store ids; empty means every store.
	Stores map[int64]struct{}
	Sort   SortKey
}

func (f Filter) WithStores(ids ...int64) Filter {
	f.Stores = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		f.Stores[id] = struct{}{}
	}
	return f
}

// Apply returns the products to display, in display order. The input slice is
// never modified.
func Apply(products []models.Product, f Filter) []models.Product {
	category := strings.TrimSpace(f.Category)
	restrictCategory := category != "" && !strings.EqualFold(category, AllCategories)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if restrictCategory && !strings.EqualFold(p.Category, category) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if len(f.Stores) > 0 {
			if _, ok := f.Stores[p.StoreID]; !ok {
				continue
			}
		}
		out = append(out, p)
	}

	sortProducts(out, f.Sort)
	return out
}

func matchesQuery(p models.Product, lowered string) bool {
	return strings.Contains(strings.ToLower(p.Name), lowered) ||
		strings.Contains(strings.ToLower(p.Description), lowered)
}

func sortProducts(items []models.Product, key SortKey) {
	switch key {
	case SortPriceAsc:
		slices.SortStableFunc(items, func(a, b models.Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(items, func(a, b models.Product) int { return b.Price.Cmp(a.Price) })
	case SortNameAsc:
		slices.SortStableFunc(items, func(a, b models.Product) int { return strings.Compare(a.Name, b.Name) })
	}
}

// Categories lists distinct categories in first-seen order.
func Categories(products []models.Product) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

type StoreRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Stores lists distinct stores in first-seen order.
func Stores(products []models.Product) []StoreRef {
	seen := make(map[int64]struct{})
	out := make([]StoreRef, 0)
	for _, p := range products {
		if _, ok := seen[p.StoreID]; ok {
			continue
		}
		seen[p.StoreID] = struct{}{}
		out = append(out, StoreRef{ID: p.StoreID, Name: p.StoreName})
	}
	return out
}
