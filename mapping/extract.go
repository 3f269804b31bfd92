package mapping

import (
	"reflect"

	"github.com/pkg/errors"
)

// ErrTooManyResults is returned when a single value was expected but several rows matched.
var ErrTooManyResults = errors.New("mapping: statement returned more than one row, where no more than one was expected")

var anySliceType = reflect.TypeOf([]any(nil))

// ExtractFromList converts a query result to target. Slice targets receive every row and
// array targets as many rows as they hold; any other target receives the single row, or nil
// for an empty result. A nil target returns the list itself.
func ExtractFromList(list []any, target reflect.Type) (any, error) {
	if target == nil || target == anySliceType {
		return list, nil
	}

	switch target.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(target, len(list), len(list))
		for i, row := range list {
			el, err := assignable(row, target.Elem())
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
			out.Index(i).Set(el)
		}
		return out.Interface(), nil
	case reflect.Array:
		out := reflect.New(target).Elem()
		for i := 0; i < len(list) && i < target.Len(); i++ {
			el, err := assignable(list[i], target.Elem())
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
			out.Index(i).Set(el)
		}
		return out.Interface(), nil
	}

	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		el, err := assignable(list[0], target)
		if err != nil {
			return nil, err
		}
		return el.Interface(), nil
	default:
		return nil, errors.Wrapf(ErrTooManyResults, "found %d rows", len(list))
	}
}
