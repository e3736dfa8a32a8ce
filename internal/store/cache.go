package store

import (
	"fmt"

	"github.com/goliatone/go-mirror/internal/runtimeconfig"
	"github.com/goliatone/go-repository-cache/cache"
)

// CacheOption builds the tag cache described by cfg. It returns nil when
// caching is disabled.
func CacheOption(cfg runtimeconfig.CacheConfig) (Option, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cacheCfg := cache.DefaultConfig()
	if cfg.TTL > 0 {
		cacheCfg.TTL = cfg.TTL
	}
	service, err := cache.NewCacheService(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("store: build tag cache: %w", err)
	}
	return WithTagCache(service, cache.NewDefaultKeySerializer()), nil
}
