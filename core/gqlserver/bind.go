package gqlserver

import (
	"reflect"
	"strings"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
)

// FieldTypes contains known GraphQL types of struct fields, keyed by Go type.
type FieldTypes map[reflect.Type]graphql.Type

func (m FieldTypes) resolveType(typ reflect.Type) graphql.Type {
	if t := m[typ]; t != nil {
		if kind := typ.Kind(); kind == reflect.Pointer || kind == reflect.Slice {
			return t
		}
		return toNonNull(t)
	}

	switch typ.Kind() {
	case reflect.Pointer:
		return graphql.GetNullable(m.resolveType(typ.Elem())).(graphql.Type)
	case reflect.Slice:
		return graphql.NewList(m.resolveType(typ.Elem()))
	case reflect.Bool:
		return NonNullBoolean
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return NonNullInt
	case reflect.Uint64:
		return NonNullUint64
	case reflect.Int64:
		return NonNullInt64
	case reflect.Float32, reflect.Float64:
		return NonNullFloat
	case reflect.String:
		return NonNullString
	}

	logger.Panic("FieldTypes cannot resolve type", zap.Stringer("type", typ))
	return nil
}

// BindFields creates graphql.Fields from the JSON-tagged fields of struct T.
// A field tagged omitempty is nullable. The gqldesc tag becomes the description.
// Field resolvers accept either T or *T as source object.
func BindFields[T any](m FieldTypes) graphql.Fields {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	fields := graphql.Fields{}
	for _, field := range reflect.VisibleFields(typ) {
		jsonTag, ok := field.Tag.Lookup("json")
		if !field.IsExported() || !ok || jsonTag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(jsonTag, ",")

		t := m.resolveType(field.Type)
		if opts == "omitempty" {
			t = graphql.GetNullable(t).(graphql.Type)
		}
		fields[name] = &graphql.Field{
			Description: field.Tag.Get("gqldesc"),
			Type:        t,
			Resolve:     makeFieldIndexResolver(field.Index),
		}
	}
	return fields
}

func makeFieldIndexResolver(index []int) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		r, e := reflect.Indirect(reflect.ValueOf(p.Source)).FieldByIndexErr(index)
		if e != nil {
			return nil, nil
		}
		if r.Kind() == reflect.Pointer {
			if r.IsNil() {
				return nil, nil
			}
			r = r.Elem()
		}
		return r.Interface(), nil
	}
}
