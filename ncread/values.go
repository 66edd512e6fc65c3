package ncread

import (
	"fmt"
	"reflect"
)

// eachFloat calls fn for every number in v, which may be a scalar or a slice
// of any depth.
func eachFloat(v any, fn func(float64)) error {
	if v == nil {
		return nil
	}
	return walk(reflect.ValueOf(v), fn)
}

func walk(rv reflect.Value, fn func(float64)) error {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := walk(rv.Index(i), fn); err != nil {
				return err
			}
		}
	case reflect.Float32, reflect.Float64:
		fn(rv.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fn(float64(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fn(float64(rv.Uint()))
	case reflect.Interface, reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return walk(rv.Elem(), fn)
	default:
		return fmt.Errorf("non-numeric value of type %s", rv.Type())
	}
	return nil
}
