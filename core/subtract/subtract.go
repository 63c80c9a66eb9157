// Package subtract computes the change between two readings of a counters struct.
package subtract

import (
	"reflect"

	"github.com/zyedidia/generic"
)

// Subtracter is a type that computes its own difference.
type Subtracter[T any] interface {
	Sub(prev T) T
}

// Sub returns curr minus prev.
//
// If T implements Subtracter[T], its Sub method is used. Otherwise, the difference is computed
// field by field:
//   - integer fields are subtracted, wrapping on underflow.
//   - struct and array fields are subtracted recursively.
//   - slice fields are subtracted element-wise, truncated to the shorter slice.
//   - pointer fields are subtracted when both are non-nil, and left nil otherwise.
//   - other fields, and fields tagged `subtract:"-"`, are left as zero value.
func Sub[T any](curr, prev T) T {
	if s, ok := any(curr).(Subtracter[T]); ok {
		return s.Sub(prev)
	}
	diff := reflect.New(reflect.TypeOf(&curr).Elem()).Elem()
	sub(diff, reflect.ValueOf(&curr).Elem(), reflect.ValueOf(&prev).Elem())
	return diff.Interface().(T)
}

// subMethod invokes a Sub(T) T method on curr, if it exists.
func subMethod(curr, prev reflect.Value) (reflect.Value, bool) {
	m := curr.MethodByName("Sub")
	if !m.IsValid() {
		return reflect.Value{}, false
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 || mt.In(0) != curr.Type() || mt.Out(0) != curr.Type() {
		return reflect.Value{}, false
	}
	return m.Call([]reflect.Value{prev})[0], true
}

func sub(diff, curr, prev reflect.Value) {
	switch curr.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		diff.SetUint(curr.Uint() - prev.Uint())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		diff.SetInt(curr.Int() - prev.Int())
	case reflect.Struct:
		if r, ok := subMethod(curr, prev); ok {
			diff.Set(r)
			return
		}
		typ := curr.Type()
		for i := 0; i < typ.NumField(); i++ {
			if f := typ.Field(i); f.IsExported() && f.Tag.Get("subtract") != "-" {
				sub(diff.Field(i), curr.Field(i), prev.Field(i))
			}
		}
	case reflect.Array:
		for i := 0; i < curr.Len(); i++ {
			sub(diff.Index(i), curr.Index(i), prev.Index(i))
		}
	case reflect.Slice:
		n := generic.Min(curr.Len(), prev.Len())
		diff.Set(reflect.MakeSlice(curr.Type(), n, n))
		for i := 0; i < n; i++ {
			sub(diff.Index(i), curr.Index(i), prev.Index(i))
		}
	case reflect.Pointer:
		if curr.IsNil() || prev.IsNil() {
			return
		}
		diff.Set(reflect.New(curr.Type().Elem()))
		sub(diff.Elem(), curr.Elem(), prev.Elem())
	}
}
