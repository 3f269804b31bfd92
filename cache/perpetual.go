package cache

import "context"

type perpetualEntry struct {
	key   *Key
	value any
}

// PerpetualCache is the base store: an unsynchronized, unordered map with no eviction.
// It backs the executor's local cache and is the default second-level implementation.
type PerpetualCache struct {
	id      string
	entries map[string]perpetualEntry
}

// NewPerpetualCache creates an empty store identified by id.
func NewPerpetualCache(id string) *PerpetualCache {
	return &PerpetualCache{
		id:      id,
		entries: make(map[string]perpetualEntry),
	}
}

func (c *PerpetualCache) ID() string {
	return c.id
}

func (c *PerpetualCache) Size() int {
	return len(c.entries)
}

func (c *PerpetualCache) Put(_ context.Context, key *Key, value any) error {
	c.entries[key.Identity()] = perpetualEntry{key: key, value: value}
	return nil
}

func (c *PerpetualCache) Get(_ context.Context, key *Key) (any, error) {
	return c.entries[key.Identity()].value, nil
}

func (c *PerpetualCache) Remove(_ context.Context, key *Key) (any, error) {
	id := key.Identity()
	entry, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	delete(c.entries, id)
	return entry.value, nil
}

func (c *PerpetualCache) Clear(_ context.Context) error {
	clear(c.entries)
	return nil
}

// Contains reports whether key has an entry, including entries that hold a nil value.
func (c *PerpetualCache) Contains(key *Key) bool {
	_, ok := c.entries[key.Identity()]
	return ok
}

// Keys returns the keys currently stored, in no particular order.
func (c *PerpetualCache) Keys() []*Key {
	keys := make([]*Key, 0, len(c.entries))
	for _, e := range c.entries {
		keys = append(keys, e.key)
	}
	return keys
}
