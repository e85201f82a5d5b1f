// Package deepequal implements structural value comparison for assertions.
//
// Values are classified into a fixed set of shapes (primitive, sequence,
// regexp, value-coercible, string-coercible, structure) and compared by
// ordered pattern matching on that shape. Cyclic structures are not
// supported: comparing them recurses without bound.
package deepequal

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
)

// Valuer lets a type opt into equality by coerced value rather than by
// structure. Two values of the same type that both implement Valuer are
// equal iff their EqualityValue results are equal.
type Valuer interface {
	EqualityValue() any
}

type shape int

const (
	shapePrimitive shape = iota
	shapeSequence
	shapeRegexp
	shapeValuer
	shapeStringer
	shapeStructure
)

// Equal reports whether a and b are structurally equivalent. It is a total
// function with no side effects and never panics on non-cyclic input.
func Equal(a, b any) bool {
	if identical(a, b) {
		return true
	}

	sa, sb := classify(a), classify(b)
	if sa == shapePrimitive || sb == shapePrimitive {
		// Mismatched primitives are only equal when both are NaN.
		return isNaN(a) && isNaN(b)
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}

	switch sa {
	case shapeSequence:
		return sequencesEqual(reflect.ValueOf(a), reflect.ValueOf(b))
	case shapeRegexp:
		return a.(*regexp.Regexp).String() == b.(*regexp.Regexp).String()
	case shapeValuer:
		return Equal(a.(Valuer).EqualityValue(), b.(Valuer).EqualityValue())
	case shapeStringer:
		return a.(fmt.Stringer).String() == b.(fmt.Stringer).String()
	default:
		return structuresEqual(reflect.ValueOf(a), reflect.ValueOf(b))
	}
}

// LooseEqual reports coercive equality: values identical to each other, or
// numeric values of any kind with the same magnitude. It backs the shallow
// Equal/NotEqual assertions; DeepEqual delegates to Equal instead.
func LooseEqual(a, b any) bool {
	if identical(a, b) {
		return true
	}
	fa, oka := toFloat(a)
	fb, okb := toFloat(b)
	return oka && okb && fa == fb
}

// identical reports exact sameness: equal comparable values, or the same
// backing store for slices, maps and funcs.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Func:
		return va.UnsafePointer() == vb.UnsafePointer()
	}
	return false
}

func classify(v any) shape {
	if _, ok := v.(*regexp.Regexp); ok {
		return shapeRegexp
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return shapeSequence
	case reflect.Map, reflect.Struct:
	case reflect.Ptr:
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return shapePrimitive
		}
	default:
		return shapePrimitive
	}
	if _, ok := v.(Valuer); ok {
		return shapeValuer
	}
	if _, ok := v.(fmt.Stringer); ok {
		return shapeStringer
	}
	return shapeStructure
}

// sequencesEqual compares order-significant sequences element-wise from the
// end toward the start, short-circuiting on the first mismatch.
func sequencesEqual(a, b reflect.Value) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := a.Len() - 1; i >= 0; i-- {
		if !Equal(a.Index(i).Interface(), b.Index(i).Interface()) {
			return false
		}
	}
	return true
}

// structuresEqual compares maps by key set and structs by exported fields,
// recursing into every value. Field order is irrelevant.
func structuresEqual(a, b reflect.Value) bool {
	if a.Kind() == reflect.Ptr {
		a, b = a.Elem(), b.Elem()
	}
	if a.Kind() == reflect.Map {
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !Equal(iter.Value().Interface(), bv.Interface()) {
				return false
			}
		}
		return true
	}
	for i := 0; i < a.NumField(); i++ {
		if !a.Type().Field(i).IsExported() {
			continue
		}
		if !Equal(a.Field(i).Interface(), b.Field(i).Interface()) {
			return false
		}
	}
	return true
}

func isNaN(v any) bool {
	switch n := v.(type) {
	case float64:
		return math.IsNaN(n)
	case float32:
		return math.IsNaN(float64(n))
	}
	return false
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
