package httpserver

import (
	"context"
	"sync"

	"github.com/Skotchmaster/storefront/internal/models"
)

type platformSource interface {
	PlatformConfig(ctx context.Context) (*models.PlatformConfig, error)
}

// Platform caches the marketplace's platform config. It is fetched on first
// use and again only on Refresh.
type Platform struct {
	src platformSource

	mu  sync.RWMutex
	cfg *models.PlatformConfig
}

func NewPlatform(src platformSource) *Platform {
	return &Platform{src: src}
}

func (p *Platform) Get(ctx context.Context) (models.PlatformConfig, error) {
	if cfg, ok := p.Cached(); ok {
		return cfg, nil
	}
	return p.Refresh(ctx)
}

func (p *Platform) Refresh(ctx context.Context) (models.PlatformConfig, error) {
	cfg, err := p.src.PlatformConfig(ctx)
	if err != nil {
		return models.PlatformConfig{}, err
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
	return *cfg, nil
}

// Cached returns the last fetched config without calling the backend.
func (p *Platform) Cached() (models.PlatformConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cfg == nil {
		return models.PlatformConfig{}, false
	}
	return *p.cfg, true
}
