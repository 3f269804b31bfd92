package cache

import (
	"context"
	"errors"
	"testing"
)

// recordingCache wraps a PerpetualCache and records which operations were invoked
type recordingCache struct {
	*PerpetualCache
	calls []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{PerpetualCache: NewPerpetualCache("recording")}
}

func (r *recordingCache) Put(ctx context.Context, key *Key, value any) error {
	r.calls = append(r.calls, "Put")
	return r.PerpetualCache.Put(ctx, key, value)
}

func (r *recordingCache) Remove(ctx context.Context, key *Key) (any, error) {
	r.calls = append(r.calls, "Remove")
	return r.PerpetualCache.Remove(ctx, key)
}

func TestPerpetualCache_Basic(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetualCache("test")

	if c.ID() != "test" {
		t.Errorf("ID() = %v, want test", c.ID())
	}

	key := NewKey("a")
	if err := c.Put(ctx, key, "value"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _ := c.Get(ctx, NewKey("a"))
	if got != "value" {
		t.Errorf("Get() = %v, want value", got)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	removed, _ := c.Remove(ctx, key)
	if removed != "value" {
		t.Errorf("Remove() = %v, want value", removed)
	}
	if got, _ := c.Get(ctx, key); got != nil {
		t.Errorf("Get() after Remove = %v, want nil", got)
	}

	_ = c.Put(ctx, NewKey("x"), nil)
	if !c.Contains(NewKey("x")) {
		t.Error("Contains() should report keys holding nil values")
	}

	_ = c.Clear(ctx)
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	ctx := context.Background()
	c := newRecordingCache()
	key := NewKey("users", 1)
	fetches := 0

	fetch := func(ctx context.Context) ([]string, error) {
		fetches++
		return []string{"alice"}, nil
	}

	for i := 0; i < 2; i++ {
		got, err := GetOrFetch(ctx, c, key, fetch)
		if err != nil {
			t.Fatalf("GetOrFetch() error = %v", err)
		}
		if len(got) != 1 || got[0] != "alice" {
			t.Errorf("GetOrFetch() = %v", got)
		}
	}

	if fetches != 1 {
		t.Errorf("fetch called %d times, want 1", fetches)
	}
}

func TestGetOrFetch_FetchErrorReleasesKey(t *testing.T) {
	ctx := context.Background()
	c := newRecordingCache()
	wantErr := errors.New("boom")

	_, err := GetOrFetch(ctx, c, NewKey("k"), func(ctx context.Context) (int, error) {
		return 0, wantErr
	})

	if !errors.Is(err, wantErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(c.calls) != 1 || c.calls[0] != "Remove" {
		t.Errorf("expected a single Remove call, got %v", c.calls)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	ctx := context.Background()
	c := NewPerpetualCache("test")
	key := NewKey("k")
	_ = c.Put(ctx, key, "wrong-type")

	result, err := GetOrFetch(ctx, c, key, func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}
	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name      string
		spec      Spec
		wantError bool
	}{
		{name: "minimal", spec: Spec{ID: "users"}},
		{name: "missing id", spec: Spec{}, wantError: true},
		{name: "negative size", spec: Spec{ID: "users", Size: -1}, wantError: true},
		{name: "timeout without blocking", spec: Spec{ID: "users", BlockingTimeout: 1}, wantError: true},
		{name: "timeout with blocking", spec: Spec{ID: "users", Blocking: true, BlockingTimeout: 1}},
		{name: "empty decorator name", spec: Spec{ID: "users", Decorators: []string{""}}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantError && err == nil {
				t.Error("expected validation error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
