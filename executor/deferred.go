package executor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/mapping"
)

type deferredLoad struct {
	resultObject any
	property     string
	key          *cache.Key
	targetType   reflect.Type
	localCache   cache.Cache
}

// canLoad reports whether the key holds a complete result.
func (d *deferredLoad) canLoad(ctx context.Context) bool {
	v, _ := d.localCache.Get(ctx, d.key)
	if v == nil {
		return false
	}
	_, running := v.(executionPlaceholder)
	return !running
}

func (d *deferredLoad) load(ctx context.Context) error {
	v, err := d.localCache.Get(ctx, d.key)
	if err != nil {
		return err
	}
	list, ok := v.([]any)
	if !ok {
		return errors.Errorf("executor: deferred load of %s found %T in the local cache", d.property, v)
	}
	value, err := mapping.ExtractFromList(list, d.targetType)
	if err != nil {
		return errors.Wrapf(err, "deferred load of %s", d.property)
	}
	return mapping.SetProperty(d.resultObject, d.property, value)
}
