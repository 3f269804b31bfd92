package cache

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between the segments of a key's string form.
const KeySeparator = ":"

// canonicalValue renders v as a deterministic string that depends only on its content.
// Two values that are deeply equal always render the same way, and pointer identity never
// leaks into the result (pointers are dereferenced). Basic types carry their type name so
// that int 1 and string "1" stay distinct.
func canonicalValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	// Handle function pointers using %p formatting for stability within a process
	if rt.Kind() == reflect.Func {
		return fmt.Sprintf("func:%p", v)
	}

	if rt.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "nil"
		}
		return canonicalValue(rv.Elem().Interface())
	}

	// Values that know how to render themselves (time.Time, uuid.UUID, net.IP, ...)
	if m, ok := v.(encoding.TextMarshaler); ok {
		if text, err := m.MarshalText(); err == nil {
			return fmt.Sprintf("%s:%s", rt.String(), text)
		}
	}

	switch rt.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return canonicalSequence("slice", rv)
	case reflect.Array:
		return canonicalSequence("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return canonicalMap(rv)
	case reflect.Struct:
		return canonicalStruct(rv, rt)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return canonicalValue(rv.Elem().Interface())
	}

	if isBasicKind(rt.Kind()) {
		return fmt.Sprintf("%s:%v", rt.String(), v)
	}

	return jsonFallback(v)
}

func canonicalSequence(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)

	for i := 0; i < length; i++ {
		parts[i] = framed(canonicalValue(rv.Index(i).Interface()))
	}

	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// canonicalMap sorts entries by their rendered key for deterministic output.
func canonicalMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		k := framed(canonicalValue(iter.Key().Interface()))
		val := framed(canonicalValue(iter.Value().Interface()))
		pairs = append(pairs, k+"="+val)
	}
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func canonicalStruct(rv reflect.Value, rt reflect.Type) string {
	numFields := rv.NumField()
	parts := make([]string, 0, numFields)

	for i := 0; i < numFields; i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldValue := rv.Field(i)
		if !fieldValue.CanInterface() {
			continue
		}

		parts = append(parts, fmt.Sprintf("%s:%s", field.Name, framed(canonicalValue(fieldValue.Interface()))))
	}

	// Structs made only of unexported state still need a content based rendering.
	if len(parts) == 0 && numFields > 0 {
		return fmt.Sprintf("struct:%#v", rv.Interface())
	}

	return fmt.Sprintf("%s{%s}", rt.String(), strings.Join(parts, ","))
}

// framed length-prefixes a nested rendering so separators inside it cannot be read as
// boundaries between elements.
func framed(part string) string {
	return strconv.Itoa(len(part)) + "#" + part
}

func isBasicKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

func jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T:%#v", v, v)
	}
	return fmt.Sprintf("json:%T:%s", v, data)
}
