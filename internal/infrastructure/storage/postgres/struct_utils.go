package postgres

import (
	"reflect"
	"slices"
	"sync"
)

// ExtractDBColumns returns the column names from the "db" tags of T, in field
// order, skipping any listed in exclude (columns filled by joins).
// Embedded structs are walked recursively. Call it once at initialization.
//
// Usage:
//
//	columns := ExtractDBColumns[party.Party]()
//	// Returns: ["id", "full_name", "document", ...]
func ExtractDBColumns[T any](exclude ...string) []string {
	var zero T
	cols := extractColumnsFromType(reflect.TypeOf(zero))
	if len(exclude) == 0 {
		return cols
	}
	return slices.DeleteFunc(cols, func(c string) bool { return slices.Contains(exclude, c) })
}

// Qualify prefixes every column with a table alias.
func Qualify(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

func extractColumnsFromType(t reflect.Type) []string {
	meta := getOrCreateTypeMetadata(t)
	if meta.typ == nil {
		return nil
	}

	var cols []string
	for _, fi := range meta.fields {
		cols = append(cols, fi.dbTag)
	}
	for _, idx := range meta.embeddedIndices {
		cols = append(cols, extractColumnsFromType(meta.typ.Field(idx).Type)...)
	}
	return cols
}

type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata is the cached reflection view of a struct type.
type typeMetadata struct {
	typ             reflect.Type
	fields          []fieldInfo
	embeddedIndices []int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func getOrCreateTypeMetadata(t reflect.Type) *typeMetadata {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() != reflect.Struct {
		typeCache.Store(t, meta)
		return meta
	}
	meta.typ = t

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			meta.embeddedIndices = append(meta.embeddedIndices, i)
			continue
		}

		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column map using "db" tags, keeping only
// the given columns when any are passed. The result feeds squirrel SetMap.
func StructToMap(v any, only ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := getOrCreateTypeMetadata(rv.Type())
	res := make(map[string]any, len(meta.fields))

	for _, fi := range meta.fields {
		if len(only) > 0 && !slices.Contains(only, fi.dbTag) {
			continue
		}
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}

	for _, embIdx := range meta.embeddedIndices {
		for k, val := range StructToMap(rv.Field(embIdx).Interface(), only...) {
			res[k] = val
		}
	}

	return res
}
