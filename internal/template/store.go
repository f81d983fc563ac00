// Package template provides the process-wide prompt template cache and the
// catalog of template keys used by each pipeline stage.
package template

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"planextract/internal/domain"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

// Store memoizes fetched templates for the process lifetime. Concurrent
// misses on the same key share a single fetch. It implements port.TemplateStore.
type Store struct {
	fetcher port.TemplateFetcher

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group
}

// NewStore creates a memoizing store in front of fetcher.
func NewStore(fetcher port.TemplateFetcher) *Store {
	return &Store{
		fetcher: fetcher,
		cache:   make(map[string]string),
	}
}

// CacheKey returns the memoization key for a template key and version.
func CacheKey(key, version string) string {
	if version == "" {
		version = "latest"
	}
	return key + ":" + version
}

func (s *Store) Get(ctx context.Context, key, version string) (string, error) {
	ck := CacheKey(key, version)

	s.mu.RLock()
	text, ok := s.cache[ck]
	s.mu.RUnlock()
	if ok {
		metrics.TemplateLookups.WithLabelValues("hit").Inc()
		return text, nil
	}

	v, err, _ := s.group.Do(ck, func() (interface{}, error) {
		s.mu.RLock()
		cached, ok := s.cache[ck]
		s.mu.RUnlock()
		if ok {
			return cached, nil
		}

		fetched, err := s.fetcher.Fetch(ctx, key, version)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(fetched) == "" {
			return "", fmt.Errorf("%w: %q", domain.ErrMissingTemplate, key)
		}

		s.mu.Lock()
		s.cache[ck] = fetched
		s.mu.Unlock()
		zap.L().Debug("template.Store.Get: cached", zap.String("key", ck), zap.Int("chars", len(fetched)))
		return fetched, nil
	})
	if err != nil {
		metrics.TemplateLookups.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.TemplateLookups.WithLabelValues("miss").Inc()
	return v.(string), nil
}

// Len returns the number of cached templates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
