package access

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"designer/internal/datadef"
)

// ConvertValue приводит сырое значение из источника к типу поля.
// nil проходит как есть; неизвестный тип — значение без изменений.
func ConvertValue(v any, t datadef.FieldType) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok { // драйверы SQL отдают текст байтами
		v = string(b)
	}

	switch t {
	case datadef.FieldString:
		return toString(v), nil
	case datadef.FieldNumber:
		return toNumber(v)
	case datadef.FieldBoolean:
		return toBool(v)
	case datadef.FieldDate:
		return toDate(v)
	case datadef.FieldArray:
		return toArray(v), nil
	case datadef.FieldObject:
		return toObject(v)
	default:
		return v, nil
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// finite: NaN и ±Inf не кодируются в JSON.
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func toNumber(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		if !finite(t) {
			return 0, fmt.Errorf("%w: %v is not a finite number", ErrBadValue, t)
		}
		return t, nil
	case float32:
		if !finite(float64(t)) {
			return 0, fmt.Errorf("%w: %v is not a finite number", ErrBadValue, t)
		}
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil || !finite(f) {
			return 0, fmt.Errorf("%w: %q is not a number", ErrBadValue, t)
		}
		return f, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return 0, fmt.Errorf("%w: %q is not a number", ErrBadValue, t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrBadValue, v)
	}
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off", "":
			return false, nil
		default:
			return false, fmt.Errorf("%w: %q is not a boolean", ErrBadValue, t)
		}
	default:
		if f, err := toNumber(v); err == nil {
			return f != 0, nil
		}
		return false, fmt.Errorf("%w: %T is not a boolean", ErrBadValue, v)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrBadValue, t)
	default:
		// число — unix-миллисекунды
		f, err := toNumber(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %T is not a date", ErrBadValue, v)
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}
}

func toArray(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case string:
		// JSON-массив строкой (колонка json в MySQL)
		s := strings.TrimSpace(t)
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
		return []any{v}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func toObject(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case string:
		var out any
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON object: %v", ErrBadValue, err)
		}
		return out, nil
	default:
		return v, nil
	}
}

// MapDataToObject раскладывает сырые записи по полям объекта через Mapping.
// Массив — поэлементно, одиночный объект — одна запись.
func MapDataToObject(raw any, obj datadef.ObjectDef) ([]map[string]any, error) {
	switch t := raw.(type) {
	case nil:
		return []map[string]any{}, nil
	case []map[string]any:
		out := make([]map[string]any, 0, len(t))
		for i, item := range t {
			rec, err := mapItem(item, obj)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, it := range t {
			item, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: record %d is %T, expected object", ErrBadValue, i, it)
			}
			rec, err := mapItem(item, obj)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			out = append(out, rec)
		}
		return out, nil
	case map[string]any:
		rec, err := mapItem(t, obj)
		if err != nil {
			return nil, err
		}
		return []map[string]any{rec}, nil
	default:
		return nil, fmt.Errorf("%w: source data is %T, expected object or array", ErrBadValue, raw)
	}
}

func mapItem(item map[string]any, obj datadef.ObjectDef) (map[string]any, error) {
	out := make(map[string]any, len(obj.Fields))
	for _, f := range obj.Fields {
		key := f.Mapping
		if key == "" {
			key = f.Name
		}
		v, ok := item[key]
		if !ok {
			if f.Required {
				return nil, fmt.Errorf("%w: required field '%s' is missing from source data", ErrMissingRequired, f.Name)
			}
			continue
		}
		cv, err := ConvertValue(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		out[f.Name] = cv
	}
	return out, nil
}
