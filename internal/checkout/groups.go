package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
)

// GroupByStore partitions lines by owning store, in order of first appearance.
func GroupByStore(lines []cart.Line) []StoreGroup {
	index := make(map[int64]int)
	groups := make([]StoreGroup, 0)
	for _, l := range lines {
		i, ok := index[l.Offer.StoreID]
		if !ok {
			i = len(groups)
			index[l.Offer.StoreID] = i
			groups = append(groups, StoreGroup{
				StoreID:   l.Offer.StoreID,
				StoreName: l.Offer.StoreName,
				Latitude:  l.Offer.Latitude,
				Longitude: l.Offer.Longitude,
				Subtotal:  decimal.Zero,
			})
		}
		groups[i].Lines = append(groups[i].Lines, l)
		groups[i].Subtotal = groups[i].Subtotal.Add(l.Subtotal())
	}
	return groups
}
