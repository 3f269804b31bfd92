package cachebuilder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/cache/decorators"
	"github.com/goliatone/go-statement-cache/internal/cacheinfra"
)

// layers walks the decorator chain from the outermost layer down to the base store.
func layers(c cache.Cache) []string {
	var out []string
	for {
		out = append(out, fmt.Sprintf("%T", c))
		d, ok := c.(decorators.Decorator)
		if !ok {
			return out
		}
		c = d.Delegate()
	}
}

func TestBuild_DefaultStack(t *testing.T) {
	c, err := New("users").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{
		"*decorators.Synchronized",
		"*decorators.Logging",
		"*decorators.LRU",
		"*cache.PerpetualCache",
	}
	if diff := cmp.Diff(want, layers(c)); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
	if c.ID() != "users" {
		t.Errorf("ID() = %s, want users", c.ID())
	}
}

func TestBuild_FullStackOrder(t *testing.T) {
	c, err := New("orders").
		AddDecorator(cache.DecoratorFIFO).
		AddDecorator(cache.DecoratorLRU).
		Size(10).
		ClearInterval(time.Minute).
		ReadWrite(true).
		Blocking(true).
		BlockingTimeout(time.Second).
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{
		"*decorators.Blocking",
		"*decorators.Synchronized",
		"*decorators.Logging",
		"*decorators.Serialized",
		"*decorators.Scheduled",
		"*decorators.LRU",
		"*decorators.FIFO",
		"*cache.PerpetualCache",
	}
	if diff := cmp.Diff(want, layers(c)); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}

	blocking := c.(*decorators.Blocking)
	if blocking.Timeout() != time.Second {
		t.Errorf("Timeout() = %v, want 1s", blocking.Timeout())
	}
}

func TestBuild_SizeAppliesToOutermostCustomDecorator(t *testing.T) {
	c, err := New("sized").AddDecorator(cache.DecoratorLRU).Size(2).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := context.Background()
	for _, v := range []string{"A", "B", "C"} {
		if err := c.Put(ctx, cache.NewKey(v), v); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if got, _ := c.Get(ctx, cache.NewKey("A")); got != nil {
		t.Errorf("Get(A) = %v, want evicted", got)
	}
}

func TestBuild_ScheduledUsesClock(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c, err := New("scheduled").ClearInterval(time.Minute).WithClock(clock).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	ctx := context.Background()
	_ = c.Put(ctx, cache.NewKey("K"), "v")
	clock.Advance(2 * time.Minute)
	if got, _ := c.Get(ctx, cache.NewKey("K")); got != nil {
		t.Errorf("Get() after interval = %v, want nil", got)
	}
}

func TestBuild_NonPerpetualOnlyGetsLogging(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c, err := FromSpec(cache.Spec{
		ID:             "remote",
		Implementation: cache.ImplementationSturdyc,
		Blocking:       true,
		Properties:     map[string]string{"capacity": "100"},
	}).WithLogger(zap.New(core)).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{"*decorators.Logging", "*cacheinfra.SturdycStore"}
	if diff := cmp.Diff(want, layers(c)); diff != "" {
		t.Errorf("layers mismatch (-want +got):\n%s", diff)
	}
	if logs.FilterMessage("standard decorators are only applied to the perpetual store").Len() != 1 {
		t.Error("expected a warning about ignored decorators")
	}
}

func TestBuild_SturdycSharedAcrossGoroutines(t *testing.T) {
	c, err := New("authors").Implementation(cache.ImplementationSturdyc).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ctx := context.Background()
	key := cache.NewKey("authors.byID", 1)
	if err := c.Put(ctx, key, []any{"ada"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, err := c.Get(ctx, key); err != nil {
					t.Errorf("Get() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	logged, ok := c.(*decorators.Logging)
	if !ok {
		t.Fatalf("outermost layer = %T, want *decorators.Logging", c)
	}
	if logged.HitRatio() != 1 {
		t.Errorf("HitRatio() = %v, want 1", logged.HitRatio())
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		spec  cache.Spec
		field string
	}{
		{
			name:  "unknown implementation",
			spec:  cache.Spec{ID: "x", Implementation: "memcached"},
			field: "Implementation",
		},
		{
			name:  "unknown decorator",
			spec:  cache.Spec{ID: "x", Decorators: []string{"lfu"}},
			field: "Decorators",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.spec, nil)
			var cfgErr *cache.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Build() error = %v, want ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.field)
			}
		})
	}

	if _, err := Build(cache.Spec{}, nil); err == nil {
		t.Error("Build() with empty id should fail validation")
	}

	_, err := Build(cache.Spec{ID: "bad", Implementation: cache.ImplementationSturdyc, Properties: map[string]string{"capacity": "0"}}, nil)
	var infraErr *cacheinfra.ConfigError
	if !errors.As(err, &infraErr) {
		t.Errorf("Build() error = %v, want cacheinfra.ConfigError", err)
	}
}

func TestRegistry_CustomEntries(t *testing.T) {
	r := NewRegistry()

	var wrapped []string
	r.RegisterDecorator("trace", func(delegate cache.Cache, props map[string]string) (cache.Cache, error) {
		wrapped = append(wrapped, props["label"])
		return decorators.NewSynchronized(delegate), nil
	})
	r.RegisterImplementation("memory", func(id string, _ map[string]string) (cache.Cache, error) {
		return cache.NewPerpetualCache(id + "-mem"), nil
	})

	c, err := New("custom").
		WithRegistry(r).
		AddDecorator("trace").
		Property("label", "first").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if diff := cmp.Diff([]string{"first"}, wrapped); diff != "" {
		t.Errorf("factory calls mismatch (-want +got):\n%s", diff)
	}
	if got := layers(c); got[len(got)-2] != "*decorators.Synchronized" {
		t.Errorf("custom decorator not applied: %v", got)
	}

	mem, err := New("other").WithRegistry(r).Implementation("memory").Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if mem.ID() != "other-mem" {
		t.Errorf("ID() = %s, want other-mem", mem.ID())
	}

	if diff := cmp.Diff([]string{"fifo", "lru", "soft", "trace"}, r.Decorators()); diff != "" {
		t.Errorf("Decorators() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_SpecIsCopied(t *testing.T) {
	b := New("copy").AddDecorator(cache.DecoratorSoft).Property("k", "v")
	spec := b.Spec()
	spec.Decorators[0] = "mutated"
	spec.Properties["k"] = "mutated"

	again := b.Spec()
	if again.Decorators[0] != cache.DecoratorSoft || again.Properties["k"] != "v" {
		t.Errorf("Spec() leaked internal state: %+v", again)
	}
}
