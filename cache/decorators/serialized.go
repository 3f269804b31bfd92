package decorators

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-statement-cache/cache"
)

// ErrNotSerializable is returned when a value cannot be encoded for storage.
var ErrNotSerializable = errors.New("cache: value is not serializable")

type encodedValue struct {
	typ  reflect.Type
	data []byte
}

// serializedList keeps per-element types so []any results decode back to their row types.
type serializedList struct {
	elements []encodedValue
}

// Serialized stores msgpack encoded copies of values and decodes a fresh copy on every Get,
// so callers never share mutable state through the cache. Only exported fields survive the
// round trip.
type Serialized struct {
	delegate cache.Cache
}

// NewSerialized wraps delegate.
func NewSerialized(delegate cache.Cache) *Serialized {
	return &Serialized{delegate: delegate}
}

func (s *Serialized) Delegate() cache.Cache { return s.delegate }

func (s *Serialized) ID() string { return s.delegate.ID() }

func (s *Serialized) Size() int { return s.delegate.Size() }

func (s *Serialized) Put(ctx context.Context, key *cache.Key, value any) error {
	if value == nil {
		return s.delegate.Put(ctx, key, nil)
	}

	stored, err := serialize(value)
	if err != nil {
		return errors.Wrapf(err, "cache %s: key %s", s.delegate.ID(), key)
	}
	return s.delegate.Put(ctx, key, stored)
}

func (s *Serialized) Get(ctx context.Context, key *cache.Key) (any, error) {
	raw, err := s.delegate.Get(ctx, key)
	if err != nil || raw == nil {
		return raw, err
	}
	return deserialize(raw)
}

func (s *Serialized) Remove(ctx context.Context, key *cache.Key) (any, error) {
	raw, err := s.delegate.Remove(ctx, key)
	if err != nil || raw == nil {
		return raw, err
	}
	return deserialize(raw)
}

func (s *Serialized) Clear(ctx context.Context) error {
	return s.delegate.Clear(ctx)
}

func serialize(value any) (any, error) {
	if list, ok := value.([]any); ok {
		out := serializedList{elements: make([]encodedValue, len(list))}
		for i, el := range list {
			enc, err := encode(el)
			if err != nil {
				return nil, err
			}
			out.elements[i] = enc
		}
		return out, nil
	}
	return encode(value)
}

func encode(value any) (encodedValue, error) {
	if value == nil {
		return encodedValue{}, nil
	}
	data, err := msgpack.Marshal(value)
	if err != nil {
		return encodedValue{}, errors.Wrapf(ErrNotSerializable, "%T: %v", value, err)
	}
	return encodedValue{typ: reflect.TypeOf(value), data: data}, nil
}

func deserialize(raw any) (any, error) {
	switch v := raw.(type) {
	case serializedList:
		list := make([]any, len(v.elements))
		for i, el := range v.elements {
			decoded, err := decode(el)
			if err != nil {
				return nil, err
			}
			list[i] = decoded
		}
		return list, nil
	case encodedValue:
		return decode(v)
	default:
		return raw, nil
	}
}

func decode(v encodedValue) (any, error) {
	if v.typ == nil {
		return nil, nil
	}
	ptr := reflect.New(v.typ)
	if err := msgpack.Unmarshal(v.data, ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "decode cached %s", v.typ)
	}
	return ptr.Elem().Interface(), nil
}
