package tenancy

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/app/repository"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

const (
	CacheTTL       = 5 * time.Minute
	cacheKeyPrefix = "tenant:slug:"
)

var ErrTenantNotFound = errors.New("tenant not found")

// Resolver maps slugs to tenants and caches slug -> tenant id in redis.
// A nil redis client disables caching.
type Resolver struct {
	tenants    repository.TenantRepository
	redis      *redis.Client
	baseDomain string
}

func NewResolver(tenants repository.TenantRepository, client *redis.Client, baseDomain string) *Resolver {
	return &Resolver{tenants: tenants, redis: client, baseDomain: baseDomain}
}

// BaseDomain returns the domain tenant subdomains live under.
func (r *Resolver) BaseDomain() string {
	return r.baseDomain
}

// SlugFromHost extracts the tenant slug of host under the resolver's base domain.
func (r *Resolver) SlugFromHost(host string) string {
	return SlugFromHost(host, r.baseDomain)
}

// Resolve returns the tenant owning slug.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	if slug == "" {
		return nil, ErrTenantNotFound
	}

	if id, ok := r.cachedID(ctx, slug); ok {
		tenant, err := r.tenants.GetByID(ctx, id)
		if err == nil && tenant.Slug == slug {
			return tenant, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		r.Invalidate(ctx, slug)
	}

	tenant, err := r.tenants.GetBySlug(ctx, slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.redis != nil {
		if err := r.redis.Set(ctx, cacheKeyPrefix+slug, tenant.ID, CacheTTL).Err(); err != nil {
			logger.L().Debug("tenant cache write failed", zap.String("slug", slug), zap.Error(err))
		}
	}
	return tenant, nil
}

// Invalidate drops the cached id of slug.
func (r *Resolver) Invalidate(ctx context.Context, slug string) {
	if r.redis == nil || slug == "" {
		return
	}
	if err := r.redis.Del(ctx, cacheKeyPrefix+slug).Err(); err != nil {
		logger.L().Warn("tenant cache invalidation failed", zap.String("slug", slug), zap.Error(err))
	}
}

func (r *Resolver) cachedID(ctx context.Context, slug string) (uint, bool) {
	if r.redis == nil {
		return 0, false
	}
	val, err := r.redis.Get(ctx, cacheKeyPrefix+slug).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("tenant cache read failed", zap.String("slug", slug), zap.Error(err))
		}
		return 0, false
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
