package decorators

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/goliatone/go-statement-cache/cache"
)

// DefaultRetainedValues is the number of hard-retained values kept by Soft.
const DefaultRetainedValues = 256

type softEntry struct {
	value     any
	reclaimed bool
}

// Soft approximates weak-retention eviction without a garbage collector hook. The most
// recently written or read values are retained in a bounded recency tier; a value pushed out
// of that tier is considered reclaimed. Reclaimed entries read as misses and are purged from
// the delegate lazily, on the next Put, Remove, Size or Get of that key.
type Soft struct {
	delegate  cache.Cache
	retained  *simplelru.LRU[string, *cache.Key]
	entries   map[string]*softEntry
	reclaimed []*cache.Key
	removing  bool
}

// NewSoft wraps delegate. A size <= 0 uses DefaultRetainedValues.
func NewSoft(delegate cache.Cache, size int) *Soft {
	s := &Soft{
		delegate: delegate,
		entries:  make(map[string]*softEntry),
	}
	s.SetSize(size)
	return s
}

// SetSize sets the number of retained values.
func (s *Soft) SetSize(size int) {
	if size <= 0 {
		size = DefaultRetainedValues
	}
	if s.retained != nil {
		s.retained.Resize(size)
		return
	}
	s.retained, _ = simplelru.NewLRU[string, *cache.Key](size, s.reclaim)
}

func (s *Soft) Delegate() cache.Cache { return s.delegate }

func (s *Soft) ID() string { return s.delegate.ID() }

func (s *Soft) Size() int {
	s.purgeReclaimed(context.Background())
	return s.delegate.Size()
}

func (s *Soft) Put(ctx context.Context, key *cache.Key, value any) error {
	if err := s.purgeReclaimed(ctx); err != nil {
		return err
	}
	entry := &softEntry{value: value}
	if err := s.delegate.Put(ctx, key, entry); err != nil {
		return err
	}
	s.entries[key.Identity()] = entry
	s.retained.Add(key.Identity(), key)
	return nil
}

func (s *Soft) Get(ctx context.Context, key *cache.Key) (any, error) {
	raw, err := s.delegate.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}

	entry, ok := raw.(*softEntry)
	if !ok {
		return raw, nil
	}

	if entry.reclaimed {
		s.forget(key)
		_, err := s.delegate.Remove(ctx, key)
		return nil, err
	}

	s.retained.Add(key.Identity(), key)
	return entry.value, nil
}

func (s *Soft) Remove(ctx context.Context, key *cache.Key) (any, error) {
	if err := s.purgeReclaimed(ctx); err != nil {
		return nil, err
	}
	s.forget(key)

	raw, err := s.delegate.Remove(ctx, key)
	if entry, ok := raw.(*softEntry); ok {
		return entry.value, err
	}
	return raw, err
}

func (s *Soft) Clear(ctx context.Context) error {
	s.removing = true
	s.retained.Purge()
	s.removing = false

	clear(s.entries)
	s.reclaimed = nil
	return s.delegate.Clear(ctx)
}

// reclaim runs when a key leaves the retention tier.
func (s *Soft) reclaim(id string, key *cache.Key) {
	if s.removing {
		return
	}
	entry, ok := s.entries[id]
	if !ok {
		return
	}
	entry.value = nil
	entry.reclaimed = true
	delete(s.entries, id)
	s.reclaimed = append(s.reclaimed, key)
}

func (s *Soft) forget(key *cache.Key) {
	s.removing = true
	s.retained.Remove(key.Identity())
	s.removing = false
	delete(s.entries, key.Identity())
}

func (s *Soft) purgeReclaimed(ctx context.Context) error {
	pending := s.reclaimed
	s.reclaimed = nil
	for _, key := range pending {
		if _, err := s.delegate.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
