package access

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// ==== Типы сортировки и параметров листинга ====

type SortKey struct {
	Field string
	Desc  bool
}

// Filter — field<op>value; op: "=", "!=", ">", "<", ">=", "<=", "*" (contains).
type Filter struct {
	Field string
	Op    string
	Value string
}

type ListParams struct {
	Limit   int
	Offset  int
	Sort    []SortKey
	Filters []Filter
	Nulls   string // "last" (default) | "first"
}

var serviceKeys = map[string]struct{}{
	"dataSource": {}, "offset": {}, "limit": {}, "sort": {}, "nulls": {},
	"_offset": {}, "_limit": {}, "_sort": {},
}

// ==== Парсинг query-параметров ====

// ParseListParams: ?_limit=&_offset=&_sort=a,-b&nulls=first&field=value&field>=10&name*=abc
func ParseListParams(q url.Values) ListParams {
	// limit
	limit := 100
	lv := q.Get("_limit")
	if lv == "" {
		lv = q.Get("limit")
	}
	if lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			limit = n
		}
	}

	// offset
	offset := 0
	ov := q.Get("_offset")
	if ov == "" {
		ov = q.Get("offset")
	}
	if ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			offset = n
		}
	}

	// sort
	var sortKeys []SortKey
	sv := strings.TrimSpace(q.Get("_sort"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("sort"))
	}
	for _, p := range strings.Split(sv, ",") {
		p = strings.TrimSpace(p)
		desc := strings.HasPrefix(p, "-")
		p = strings.TrimLeft(p, "+-")
		if p != "" {
			sortKeys = append(sortKeys, SortKey{Field: p, Desc: desc})
		}
	}

	// nulls
	nulls := strings.ToLower(strings.TrimSpace(q.Get("nulls")))
	if nulls != "first" && nulls != "last" {
		nulls = "last"
	}

	// фильтры (исключаем служебные ключи); порядок ключей стабилен
	keys := lo.Keys(q)
	sort.Strings(keys)
	var filters []Filter
	for _, key := range keys {
		if _, skip := serviceKeys[key]; skip {
			continue
		}
		for _, v := range q[key] {
			f := parseFilter(key, v)
			if f.Field == "" || (f.Op == "=" && strings.TrimSpace(f.Value) == "") {
				continue
			}
			filters = append(filters, f)
		}
	}

	return ListParams{
		Limit:   limit,
		Offset:  offset,
		Sort:    sortKeys,
		Filters: filters,
		Nulls:   nulls,
	}
}

// parseFilter разбирает пару из url.Values. "age>=10" приходит как key="age>", value="10",
// "age>10" — как key="age>10", value="".
func parseFilter(key, value string) Filter {
	for _, op := range []string{"!", ">", "<", "*"} {
		if strings.HasSuffix(key, op) {
			o := op + "="
			if op == "*" {
				o = "*"
			}
			return Filter{Field: strings.TrimSuffix(key, op), Op: o, Value: value}
		}
	}
	if value == "" {
		for _, op := range []string{">", "<"} {
			if i := strings.Index(key, op); i > 0 {
				return Filter{Field: key[:i], Op: op, Value: key[i+1:]}
			}
		}
	}
	return Filter{Field: key, Op: "=", Value: value}
}

// ApplyList фильтрует, сортирует и режет страницу. total — число записей после фильтра.
func ApplyList(records []map[string]any, p ListParams) (page []map[string]any, total int) {
	filtered := lo.Filter(records, func(r map[string]any, _ int) bool {
		for _, f := range p.Filters {
			if !matchFilter(r, f) {
				return false
			}
		}
		return true
	})
	sortRecordsMultiNulls(filtered, p.Sort, p.Nulls)

	total = len(filtered)
	if p.Offset >= total {
		return []map[string]any{}, total
	}
	end := total
	if p.Limit > 0 && p.Offset+p.Limit < total {
		end = p.Offset + p.Limit
	}
	return filtered[p.Offset:end], total
}

func matchFilter(r map[string]any, f Filter) bool {
	v, ok := r[f.Field]
	if !ok || v == nil {
		return f.Op == "!="
	}
	switch f.Op {
	case "=":
		return strings.EqualFold(toString(v), f.Value)
	case "!=":
		return !strings.EqualFold(toString(v), f.Value)
	case "*":
		return strings.Contains(strings.ToLower(toString(v)), strings.ToLower(f.Value))
	}
	c, ok := compareToString(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case ">":
		return c > 0
	case "<":
		return c < 0
	case ">=":
		return c >= 0
	case "<=":
		return c <= 0
	}
	return false
}

// compareToString сравнивает значение записи с литералом фильтра по типу значения.
func compareToString(v any, lit string) (int, bool) {
	switch t := v.(type) {
	case float64:
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return 0, false
		}
		return cmpOrdered(t, n), true
	case time.Time:
		d, err := toDate(lit)
		if err != nil {
			return 0, false
		}
		return t.Compare(d), true
	default:
		return strings.Compare(toString(v), lit), true
	}
}

func cmpOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ==== Сортировка с политикой nulls ====

func isNull(v any, ok bool) bool { return !ok || v == nil }

// сравнение двух записей по одному ключу с учётом nullsPolicy и направления
func cmpByKey(a, b map[string]any, key string, nullsPolicy string, desc bool) int {
	va, oka := a[key]
	vb, okb := b[key]

	na := isNull(va, oka)
	nb := isNull(vb, okb)

	// nulls first/last — не зависит от направления
	if na && nb {
		return 0
	}
	if na != nb {
		if (nullsPolicy == "last") == na {
			return +1
		}
		return -1
	}

	rel := cmpValues(va, vb)
	if desc {
		rel = -rel
	}
	return rel
}

// числа и даты сравниваем по значению, остальное — строково
func cmpValues(a, b any) int {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmpOrdered(fmt.Sprint(x), fmt.Sprint(y))
		}
	}
	return cmpOrdered(toString(a), toString(b))
}

// мультисортировка с учётом nullsPolicy
func sortRecordsMultiNulls(records []map[string]any, keys []SortKey, nullsPolicy string) {
	specs := lo.Filter(keys, func(k SortKey, _ int) bool { return k.Field != "" })
	if len(specs) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, s := range specs {
			if c := cmpByKey(records[i], records[j], s.Field, nullsPolicy, s.Desc); c != 0 {
				return c < 0
			}
		}
		return false
	})
}
