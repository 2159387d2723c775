package catalog

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/models"
)

// Searcher runs a free-text search somewhere other than the local filter and
// returns hits in the source's own order.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Product, error)
}
