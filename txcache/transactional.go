package txcache

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
)

type stagedEntry struct {
	key   *cache.Key
	value any
}

// TransactionalCache buffers the writes one transaction makes to a shared cache. Reads go
// straight to the shared cache; writes are staged and only published on Commit. Keys that
// missed are remembered so that locks taken by a Blocking decorator are released on Commit
// (by writing nil) or Rollback (by removing).
//
// A TransactionalCache belongs to a single session and is not safe for concurrent use.
type TransactionalCache struct {
	delegate      cache.Cache
	owner         string
	logger        *zap.Logger
	clearOnCommit bool
	staged        map[string]stagedEntry
	stagedOrder   []string
	missed        map[string]*cache.Key
	missedOrder   []string
}

// New wraps delegate for one session. Calls reach delegate tagged with owner, see cache.WithOwner;
// an empty owner gets a random one.
func New(delegate cache.Cache, owner string, logger *zap.Logger) *TransactionalCache {
	if owner == "" {
		owner = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionalCache{
		delegate: delegate,
		owner:    owner,
		logger:   logger,
		staged:   make(map[string]stagedEntry),
		missed:   make(map[string]*cache.Key),
	}
}

func (t *TransactionalCache) ID() string { return t.delegate.ID() }

// Size reports the shared cache size; staged entries are not counted.
func (t *TransactionalCache) Size() int { return t.delegate.Size() }

// Get reads from the shared cache. Once Clear was called it always reports a miss.
func (t *TransactionalCache) Get(ctx context.Context, key *cache.Key) (any, error) {
	value, err := t.delegate.Get(t.ownerContext(ctx), key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		t.markMissed(key)
	}
	if t.clearOnCommit {
		return nil, nil
	}
	return value, nil
}

// Put stages value for key. The shared cache is untouched until Commit.
func (t *TransactionalCache) Put(_ context.Context, key *cache.Key, value any) error {
	id := key.Identity()
	if _, ok := t.staged[id]; !ok {
		t.stagedOrder = append(t.stagedOrder, id)
	}
	t.staged[id] = stagedEntry{key: key, value: value}
	return nil
}

// Remove is a no-op; entries are only dropped through Clear.
func (t *TransactionalCache) Remove(_ context.Context, _ *cache.Key) (any, error) {
	return nil, nil
}

// Clear drops staged writes and arms a clear of the shared cache on Commit.
func (t *TransactionalCache) Clear(_ context.Context) error {
	t.clearOnCommit = true
	clear(t.staged)
	t.stagedOrder = t.stagedOrder[:0]
	return nil
}

// Commit publishes the transaction: the shared cache is cleared if armed, staged entries are
// written, and every missed key that was not staged is written as nil to release its lock.
// A failed write does not stop the remaining ones; all failures are returned together.
func (t *TransactionalCache) Commit(ctx context.Context) error {
	defer t.reset()

	var errs error
	ctx = t.ownerContext(ctx)
	if t.clearOnCommit {
		if err := t.delegate.Clear(ctx); err != nil {
			errs = errors.Wrapf(err, "clear cache %s on commit", t.delegate.ID())
		}
	}
	return multierr.Append(errs, t.flushPendingEntries(ctx))
}

// Rollback discards staged writes and releases the locks held on missed keys. Failures to
// release a key are logged and do not stop the remaining releases.
func (t *TransactionalCache) Rollback(ctx context.Context) {
	defer t.reset()
	t.unlockMissedEntries(t.ownerContext(ctx))
}

func (t *TransactionalCache) flushPendingEntries(ctx context.Context) error {
	var errs error
	for _, id := range t.stagedOrder {
		entry := t.staged[id]
		if err := t.delegate.Put(ctx, entry.key, entry.value); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "publish %s to cache %s", entry.key, t.delegate.ID()))
		}
	}
	for _, id := range t.missedOrder {
		if _, ok := t.staged[id]; ok {
			continue
		}
		if err := t.delegate.Put(ctx, t.missed[id], nil); err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "release missed %s in cache %s", t.missed[id], t.delegate.ID()))
		}
	}
	return errs
}

func (t *TransactionalCache) unlockMissedEntries(ctx context.Context) {
	for _, id := range t.missedOrder {
		key := t.missed[id]
		if _, err := t.delegate.Remove(ctx, key); err != nil {
			t.logger.Warn("release missed key on rollback failed",
				zap.String("cache", t.delegate.ID()),
				zap.Stringer("key", key),
				zap.Error(err),
			)
		}
	}
}

func (t *TransactionalCache) markMissed(key *cache.Key) {
	id := key.Identity()
	if _, ok := t.missed[id]; ok {
		return
	}
	t.missed[id] = key
	t.missedOrder = append(t.missedOrder, id)
}

func (t *TransactionalCache) reset() {
	t.clearOnCommit = false
	clear(t.staged)
	t.stagedOrder = t.stagedOrder[:0]
	clear(t.missed)
	t.missedOrder = t.missedOrder[:0]
}

func (t *TransactionalCache) ownerContext(ctx context.Context) context.Context {
	return cache.WithOwner(ctx, t.owner)
}
