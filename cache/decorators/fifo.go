package decorators

import (
	"container/list"
	"context"

	"github.com/goliatone/go-statement-cache/cache"
)

// FIFO evicts the first inserted key once the number of tracked keys exceeds its size.
// Reads never change the order; re-inserting a tracked key keeps its original position.
type FIFO struct {
	delegate cache.Cache
	size     int
	order    *list.List
	index    map[string]*list.Element
}

// NewFIFO wraps delegate with insertion order eviction. A size <= 0 uses DefaultEvictionSize.
func NewFIFO(delegate cache.Cache, size int) *FIFO {
	f := &FIFO{
		delegate: delegate,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	f.SetSize(size)
	return f
}

func (f *FIFO) SetSize(size int) {
	if size <= 0 {
		size = DefaultEvictionSize
	}
	f.size = size
}

func (f *FIFO) Delegate() cache.Cache { return f.delegate }

func (f *FIFO) ID() string { return f.delegate.ID() }

func (f *FIFO) Size() int { return f.delegate.Size() }

func (f *FIFO) Put(ctx context.Context, key *cache.Key, value any) error {
	if err := f.cycleKeyList(ctx, key); err != nil {
		return err
	}
	return f.delegate.Put(ctx, key, value)
}

func (f *FIFO) Get(ctx context.Context, key *cache.Key) (any, error) {
	return f.delegate.Get(ctx, key)
}

func (f *FIFO) Remove(ctx context.Context, key *cache.Key) (any, error) {
	if el, ok := f.index[key.Identity()]; ok {
		f.order.Remove(el)
		delete(f.index, key.Identity())
	}
	return f.delegate.Remove(ctx, key)
}

func (f *FIFO) Clear(ctx context.Context) error {
	f.order.Init()
	clear(f.index)
	return f.delegate.Clear(ctx)
}

func (f *FIFO) cycleKeyList(ctx context.Context, key *cache.Key) error {
	id := key.Identity()
	if _, ok := f.index[id]; ok {
		return nil
	}

	f.index[id] = f.order.PushBack(key)
	if f.order.Len() <= f.size {
		return nil
	}

	oldest := f.order.Remove(f.order.Front()).(*cache.Key)
	delete(f.index, oldest.Identity())
	_, err := f.delegate.Remove(ctx, oldest)
	return err
}
