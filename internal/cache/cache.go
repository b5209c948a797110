package cache

import (
	"context"
	"time"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

// PromotionCache caches the full promotion set so repricing a cart does not
// hit the repository on every line edit. Stale entries are tolerable; the
// TTL bounds how long a deactivated promotion can keep applying.
type PromotionCache interface {
	Get(ctx context.Context, key string) ([]domain.Promotion, bool, error)
	Set(ctx context.Context, key string, promos []domain.Promotion, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopPromotionCache struct{}

func (NoopPromotionCache) Get(_ context.Context, _ string) ([]domain.Promotion, bool, error) {
	return nil, false, nil
}

func (NoopPromotionCache) Set(_ context.Context, _ string, _ []domain.Promotion, _ time.Duration) error {
	return nil
}

func (NoopPromotionCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
