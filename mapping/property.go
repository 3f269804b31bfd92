package mapping

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNoSuchProperty is returned when a property path does not resolve.
	ErrNoSuchProperty = errors.New("mapping: no such property")
	// ErrNotSettable is returned when a property cannot be written.
	ErrNotSettable = errors.New("mapping: property is not settable")
)

// GetProperty reads a dotted property path from obj. Segments match map keys, struct field names
// (case-insensitively) or the column of a bun, db or json tag; numeric segments index slices.
// A nil pointer along the path yields nil.
func GetProperty(obj any, path string) (any, error) {
	v := reflect.ValueOf(obj)
	for _, segment := range strings.Split(path, ".") {
		v = indirect(v)
		if !v.IsValid() {
			return nil, nil
		}
		next, err := child(v, segment)
		if err != nil {
			return nil, errors.Wrapf(err, "property %q of %T", path, obj)
		}
		v = next
	}
	v = indirectInterface(v)
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// SetProperty writes value to a dotted property path of obj, which must be a pointer or a map.
// Nil pointers along the path are allocated. Values are converted when the types differ but are
// convertible.
func SetProperty(obj any, path string, value any) error {
	segments := strings.Split(path, ".")
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer && v.Kind() != reflect.Map {
		return errors.Wrapf(ErrNotSettable, "property %q of non-pointer %T", path, obj)
	}

	for i, segment := range segments {
		v = allocIndirect(v)
		if !v.IsValid() {
			return errors.Wrapf(ErrNotSettable, "property %q of %T", path, obj)
		}
		last := i == len(segments)-1

		if v.Kind() == reflect.Map {
			key := reflect.ValueOf(segment)
			if !key.Type().ConvertibleTo(v.Type().Key()) {
				return errors.Wrapf(ErrNoSuchProperty, "property %q of %T", path, obj)
			}
			key = key.Convert(v.Type().Key())
			if !last {
				v = v.MapIndex(key)
				continue
			}
			if v.IsNil() {
				return errors.Wrapf(ErrNotSettable, "nil map at %q of %T", path, obj)
			}
			elem, err := assignable(value, v.Type().Elem())
			if err != nil {
				return errors.Wrapf(err, "property %q of %T", path, obj)
			}
			v.SetMapIndex(key, elem)
			return nil
		}

		next, err := child(v, segment)
		if err != nil {
			return errors.Wrapf(err, "property %q of %T", path, obj)
		}
		if !last {
			v = next
			continue
		}
		if !next.CanSet() {
			return errors.Wrapf(ErrNotSettable, "property %q of %T", path, obj)
		}
		elem, err := assignable(value, next.Type())
		if err != nil {
			return errors.Wrapf(err, "property %q of %T", path, obj)
		}
		next.Set(elem)
	}
	return nil
}

func child(v reflect.Value, segment string) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(segment)
		if !key.Type().ConvertibleTo(v.Type().Key()) {
			return reflect.Value{}, ErrNoSuchProperty
		}
		return v.MapIndex(key.Convert(v.Type().Key())), nil
	case reflect.Struct:
		if f, ok := fieldByProperty(v.Type(), segment); ok {
			field, err := v.FieldByIndexErr(f.Index)
			if err != nil {
				return reflect.Value{}, errors.Wrap(ErrNoSuchProperty, err.Error())
			}
			return field, nil
		}
	case reflect.Slice, reflect.Array:
		if i, err := strconv.Atoi(segment); err == nil && i >= 0 && i < v.Len() {
			return v.Index(i), nil
		}
	}
	return reflect.Value{}, ErrNoSuchProperty
}

func fieldByProperty(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, true
	}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
		tagged := false
		for _, tag := range []string{"bun", "db", "json"} {
			column, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if column == "" || column == "-" {
				continue
			}
			tagged = true
			if column == name {
				return f, true
			}
		}
		if !tagged && columnName(f.Name) == name {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func assignable(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		return v, nil
	}
	if v.Type().ConvertibleTo(target) && convertible(v.Kind(), target.Kind()) {
		return v.Convert(target), nil
	}
	if target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Elem()) {
		p := reflect.New(target.Elem())
		p.Elem().Set(v)
		return p, nil
	}
	return reflect.Value{}, errors.Wrapf(ErrNotSettable, "cannot assign %s to %s", v.Type(), target)
}

// convertible rejects reflect conversions that change meaning, such as int to string.
func convertible(from, to reflect.Kind) bool {
	if to == reflect.String {
		return from == reflect.String
	}
	return true
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func indirectInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func allocIndirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			if v.Kind() == reflect.Interface || !v.CanSet() {
				return reflect.Value{}
			}
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	return v
}
