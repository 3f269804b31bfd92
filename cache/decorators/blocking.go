package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-statement-cache/cache"
)

// ErrLockTimeout matches every LockTimeoutError.
var ErrLockTimeout = errors.New("cache: timed out waiting for key lock")

// LockTimeoutError reports a bounded wait on a per-key lock that expired.
type LockTimeoutError struct {
	Key     string
	CacheID string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("couldn't get a lock in %s for the key %s at the cache %s", e.Timeout, e.Key, e.CacheID)
}

// Is lets errors.Is match ErrLockTimeout.
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

type keyLock struct {
	sem   chan struct{}
	mu    sync.Mutex
	held  bool
	owner string
}

func newKeyLock() *keyLock {
	return &keyLock{sem: make(chan struct{}, 1)}
}

// Blocking lets a single caller populate a missing key. A Get that misses returns with the
// key's lock held; concurrent Gets for that key wait until the holder calls Put (which stores
// the value and releases) or Remove (which only releases). Hits release immediately.
//
// Lock holders are told apart by cache.WithOwner. Anonymous callers never re-enter a held lock.
// Re-entry keeps no hold count: a holder that missed the same key twice still releases it with
// a single Put or Remove, which matches the transactional buffer recording each missed key once.
// Locks are created on first use and never pruned, so the lock map grows with the number of
// distinct keys ever requested.
type Blocking struct {
	delegate cache.Cache
	timeout  time.Duration
	locks    *xsync.MapOf[string, *keyLock]
}

// NewBlocking wraps delegate. A timeout <= 0 waits indefinitely (still honouring ctx).
func NewBlocking(delegate cache.Cache, timeout time.Duration) *Blocking {
	return &Blocking{
		delegate: delegate,
		timeout:  timeout,
		locks:    xsync.NewMapOf[string, *keyLock](),
	}
}

func (b *Blocking) Delegate() cache.Cache { return b.delegate }

func (b *Blocking) ID() string { return b.delegate.ID() }

func (b *Blocking) Size() int { return b.delegate.Size() }

// Timeout returns the configured lock wait bound.
func (b *Blocking) Timeout() time.Duration { return b.timeout }

// SetTimeout changes the lock wait bound for subsequent acquisitions.
func (b *Blocking) SetTimeout(timeout time.Duration) { b.timeout = timeout }

func (b *Blocking) Put(ctx context.Context, key *cache.Key, value any) error {
	defer b.releaseLock(ctx, key)
	return b.delegate.Put(ctx, key, value)
}

func (b *Blocking) Get(ctx context.Context, key *cache.Key) (any, error) {
	if err := b.acquireLock(ctx, key); err != nil {
		return nil, err
	}

	value, err := b.delegate.Get(ctx, key)
	if err != nil || value != nil {
		b.releaseLock(ctx, key)
	}
	return value, err
}

// Remove only releases the caller's lock on key; the delegate is left untouched.
func (b *Blocking) Remove(ctx context.Context, key *cache.Key) (any, error) {
	b.releaseLock(ctx, key)
	return nil, nil
}

func (b *Blocking) Clear(ctx context.Context) error {
	return b.delegate.Clear(ctx)
}

func (b *Blocking) acquireLock(ctx context.Context, key *cache.Key) error {
	owner := cache.OwnerFromContext(ctx)
	lock, _ := b.locks.LoadOrCompute(key.Identity(), newKeyLock)

	if owner != "" {
		lock.mu.Lock()
		reentrant := lock.held && lock.owner == owner
		lock.mu.Unlock()
		if reentrant {
			return nil
		}
	}

	var expired <-chan time.Time
	if b.timeout > 0 {
		timer := time.NewTimer(b.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case lock.sem <- struct{}{}:
	case <-expired:
		return &LockTimeoutError{Key: key.String(), CacheID: b.delegate.ID(), Timeout: b.timeout}
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "waiting for lock on key %s at cache %s", key, b.delegate.ID())
	}

	lock.mu.Lock()
	lock.held = true
	lock.owner = owner
	lock.mu.Unlock()
	return nil
}

func (b *Blocking) releaseLock(ctx context.Context, key *cache.Key) {
	lock, ok := b.locks.Load(key.Identity())
	if !ok {
		return
	}

	lock.mu.Lock()
	defer lock.mu.Unlock()
	if !lock.held || lock.owner != cache.OwnerFromContext(ctx) {
		return
	}
	lock.held = false
	lock.owner = ""
	<-lock.sem
}
