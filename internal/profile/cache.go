// Package profile keeps the bulk company-profile list in memory and answers
// symbol lookups against it.
package profile

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/finview/internal/provider"
	"github.com/seenimoa/finview/pkg/models"
)

// ErrNotFound is returned by FindBySymbol when no profile matches.
var ErrNotFound = errors.New("Company not found")

// Cache holds the profile list. It is filled lazily by EnsureLoaded and is
// read-only afterwards.
type Cache struct {
	source provider.ProfileSource
	log    zerolog.Logger

	mu       sync.RWMutex
	profiles []models.CompanyProfile

	group singleflight.Group
}

// NewCache returns an empty cache backed by source.
func NewCache(source provider.ProfileSource, log zerolog.Logger) *Cache {
	return &Cache{source: source, log: log}
}

// EnsureLoaded fetches the profile list if the cache is empty. Concurrent
// callers share a single upstream request, which is detached from any one
// caller's cancellation; each caller stops waiting when its own ctx is done.
// On failure the cache stays empty, the error is logged and returned, and
// the next call tries again.
func (c *Cache) EnsureLoaded(ctx context.Context) error {
	if c.Len() > 0 {
		return nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("profiles", func() (any, error) {
		if c.Len() > 0 {
			return nil, nil
		}
		profiles, err := c.source.FetchProfiles(fetchCtx)
		if err != nil {
			c.log.Warn().Err(err).Msg("profile cache load failed")
			return nil, err
		}
		c.mu.Lock()
		c.profiles = profiles
		c.mu.Unlock()
		c.log.Info().Int("profiles", len(profiles)).Msg("profile cache loaded")
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FindBySymbol returns the first profile whose trimmed symbol equals the
// trimmed query. Matching is case-sensitive. A blank query is an
// *provider.ErrMissingParam.
func (c *Cache) FindBySymbol(symbol string) (models.CompanyProfile, error) {
	want := strings.TrimSpace(symbol)
	if want == "" {
		return models.CompanyProfile{}, &provider.ErrMissingParam{Param: "symbol"}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.profiles {
		if strings.TrimSpace(p.Symbol) == want {
			return p, nil
		}
	}
	return models.CompanyProfile{}, ErrNotFound
}

// Len returns the number of cached profiles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.profiles)
}
