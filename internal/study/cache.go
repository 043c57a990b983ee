package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/flashdeck/internal/database"
	"github.com/example/flashdeck/internal/fsrs"
	"github.com/example/flashdeck/pkg/models"
)

// DefaultCacheTTL is how long a compiled scheduler stays valid before the
// next Get re-resolves the user's parameters.
const DefaultCacheTTL = 30 * time.Minute

// ParameterSource resolves stored scheduling parameters for a user.
type ParameterSource interface {
	Parameters(ctx context.Context, userID int64) (models.SchedulingParameters, error)
}

type cacheEntry struct {
	scheduler *fsrs.Scheduler
	expires   time.Time
}

// ParamCache keeps one compiled scheduler per user so repeated queue builds
// and submissions do not re-validate weights on every call. Entries expire
// after the TTL and can be invalidated immediately when settings change.
type ParamCache struct {
	source ParameterSource
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[int64]cacheEntry
}

func NewParamCache(source ParameterSource) *ParamCache {
	return &ParamCache{
		source:  source,
		ttl:     DefaultCacheTTL,
		now:     time.Now,
		entries: make(map[int64]cacheEntry),
	}
}

// Get returns the cached scheduler for the user, resolving and compiling
// parameters on a miss or after expiry. Resolution runs outside the lock, so
// a slow parameter lookup never blocks cached reads for other users.
// Failures are returned to the caller and nothing is cached.
func (c *ParamCache) Get(ctx context.Context, userID int64) (*fsrs.Scheduler, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && c.now().Before(entry.expires) {
		return entry.scheduler, nil
	}

	params, err := c.source.Parameters(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %d: %w", ErrParametersUnavailable, userID, err)
		}
		return nil, err
	}
	scheduler, err := fsrs.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: user %d: %w", ErrParametersUnavailable, userID, err)
	}

	c.mu.Lock()
	c.entries[userID] = cacheEntry{scheduler: scheduler, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return scheduler, nil
}

// Invalidate drops the user's entry so the next Get resolves fresh
// parameters. Call it whenever stored settings change.
func (c *ParamCache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll clears every cached scheduler.
func (c *ParamCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]cacheEntry)
	c.mu.Unlock()
}
