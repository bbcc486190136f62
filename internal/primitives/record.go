package primitives

import (
	"reflect"
	"strings"
)

// TypeKey is the map key and JSON field name carrying an action's discriminator.
const TypeKey = "type"

// IsPlainRecord reports whether v is a plain data record.
//
// Plain records are maps keyed by strings, struct values, and non-nil
// pointers to structs, provided the type declares no methods. Functions,
// channels, slices, arrays, scalars and nil are never plain.
func IsPlainRecord(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	rt := rv.Type()
	if rt.NumMethod() > 0 {
		return false
	}

	switch rt.Kind() {
	case reflect.Map:
		return rt.Key().Kind() == reflect.String
	case reflect.Struct:
		return reflect.PointerTo(rt).NumMethod() == 0
	case reflect.Pointer:
		if rv.IsNil() {
			return false
		}
		return rt.Elem().Kind() == reflect.Struct && rt.Elem().NumMethod() == 0
	default:
		return false
	}
}

// ActionType returns the discriminator of a plain record and whether it is present.
// Maps are looked up by TypeKey; structs by the field tagged `json:"type"`,
// falling back to an exported field named Type.
//
// A discriminator is absent when the key or field is missing, holds nil, or
// is a string-typed struct field left empty. Other zero values such as 0,
// false or the first constant of an iota enum are valid discriminators.
func ActionType(v any) (any, bool) {
	if !IsPlainRecord(v) {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	var field reflect.Value
	switch rv.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(TypeKey).Convert(rv.Type().Key())
		field = rv.MapIndex(key)
	case reflect.Struct:
		field = typeField(rv)
		if field.IsValid() && field.Kind() == reflect.String && field.Len() == 0 {
			return nil, false
		}
	}
	return present(field)
}

// typeField finds the discriminator field of a struct value.
func typeField(rv reflect.Value) reflect.Value {
	rt := rv.Type()
	fallback := -1
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name == TypeKey {
			return rv.Field(i)
		}
		if f.Name == "Type" && fallback < 0 {
			fallback = i
		}
	}
	if fallback < 0 {
		return reflect.Value{}
	}
	return rv.Field(fallback)
}

func present(field reflect.Value) (any, bool) {
	if !field.IsValid() {
		return nil, false
	}
	for field.Kind() == reflect.Interface {
		if field.IsNil() {
			return nil, false
		}
		field = field.Elem()
	}
	switch field.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if field.IsNil() {
			return nil, false
		}
	}
	return field.Interface(), true
}
