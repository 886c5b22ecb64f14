package datastore

import (
	"reflect"
	"strings"
	"unicode"
)

// Row converts a struct into an insertable record. Columns come from the
// `db` struct tag, falling back to the snake_case field name; a tag of "-"
// skips the field. Embedded structs are flattened.
func Row[T any](value T) map[string]any {
	result := make(map[string]any)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return result
		}
		v = v.Elem()
	}

	appendFields(v, result)
	return result
}

func appendFields(v reflect.Value, result map[string]any) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			appendFields(value, result)
			continue
		}

		column, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		switch column {
		case "-":
			continue
		case "":
			column = toSnakeCase(field.Name)
		}

		result[column] = columnValue(value)
	}
}

// columnValue maps empty strings to NULL.
func columnValue(value reflect.Value) any {
	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() == reflect.String && value.Len() == 0 {
		return nil
	}
	return value.Interface()
}

// toSnakeCase converts Go field names, keeping initialisms together:
// BookID -> book_id, ISBN -> isbn, HTTPStatus -> http_status.
func toSnakeCase(input string) string {
	runes := []rune(input)
	var builder strings.Builder
	builder.Grow(len(runes) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				builder.WriteRune('_')
			}
		}
		builder.WriteRune(unicode.ToLower(r))
	}

	return builder.String()
}
