package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/team-registry-api/pkg/errors"
)

// TeamPageNamespace prefixes cached team list pages.
const TeamPageNamespace = "teams:page:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// PageCache keeps rendered pages keyed by their canonical cursor token. Tokens grow with the
// filters they carry, so keys hold a digest of the token instead of the token itself.
// Cache failures are logged and never reach the caller.
type PageCache struct {
	repo      CacheRepository
	metrics   *MetricsService
	namespace string
	ttl       time.Duration
	logger    *zap.Logger
	enabled   bool
}

// NewPageCache builds a page cache over repo. A disabled or repo-less cache misses every lookup.
func NewPageCache(repo CacheRepository, metrics *MetricsService, namespace string, ttl time.Duration, logger *zap.Logger, enabled bool) *PageCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageCache{repo: repo, metrics: metrics, namespace: namespace, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether lookups can hit.
func (p *PageCache) Enabled() bool {
	return p != nil && p.enabled && p.repo != nil
}

// Key returns the storage key for token.
func (p *PageCache) Key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return p.namespace + hex.EncodeToString(sum[:16])
}

// Load decodes the page cached for token into dest and reports a hit.
func (p *PageCache) Load(ctx context.Context, token string, dest interface{}) bool {
	if !p.Enabled() {
		return false
	}
	start := time.Now()
	err := p.repo.Get(ctx, p.Key(token), dest)
	p.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		p.logger.Warn("page cache lookup failed", zap.String("namespace", p.namespace), zap.Error(err))
	}
	return err == nil
}

// Store caches page under token.
func (p *PageCache) Store(ctx context.Context, token string, page interface{}) {
	if !p.Enabled() {
		return
	}
	start := time.Now()
	err := p.repo.Set(ctx, p.Key(token), page, p.ttl)
	p.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		p.logger.Warn("page cache store failed", zap.String("namespace", p.namespace), zap.Error(err))
	}
}

// Purge drops every cached page in the namespace. Writes that change list results call it.
func (p *PageCache) Purge(ctx context.Context) {
	if !p.Enabled() {
		return
	}
	if err := p.repo.DeleteByPattern(ctx, p.namespace+"*"); err != nil {
		p.logger.Warn("page cache purge failed", zap.String("namespace", p.namespace), zap.Error(err))
	}
}
