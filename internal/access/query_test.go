package access

import (
	"net/url"
	"testing"

	"designer/internal/datadef"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListParams(t *testing.T) {
	q, err := url.ParseQuery("dataSource=crm&_limit=2&_offset=1&_sort=-price,model&nulls=first&brand=Kia&price>=100&model*=ce&year<2020&status!=sold")
	require.NoError(t, err)

	p := ParseListParams(q)
	assert.Equal(t, 2, p.Limit)
	assert.Equal(t, 1, p.Offset)
	assert.Equal(t, "first", p.Nulls)
	assert.Equal(t, []SortKey{{Field: "price", Desc: true}, {Field: "model"}}, p.Sort)
	assert.ElementsMatch(t, []Filter{
		{Field: "brand", Op: "=", Value: "Kia"},
		{Field: "price", Op: ">=", Value: "100"},
		{Field: "model", Op: "*", Value: "ce"},
		{Field: "year", Op: "<", Value: "2020"},
		{Field: "status", Op: "!=", Value: "sold"},
	}, p.Filters)
}

func TestParseListParamsDefaults(t *testing.T) {
	p := ParseListParams(url.Values{"_limit": {"5000"}, "empty": {""}})
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, "last", p.Nulls)
	assert.Empty(t, p.Filters)
	assert.Empty(t, p.Sort)
}

func cars() []map[string]any {
	return []map[string]any{
		{"model": "Ceed", "brand": "Kia", "price": 150.0},
		{"model": "Rio", "brand": "Kia", "price": 90.0},
		{"model": "Picanto", "brand": "kia", "price": nil},
		{"model": "Civic", "brand": "Honda", "price": 200.0},
	}
}

func TestApplyListFilterSortPage(t *testing.T) {
	p := ListParams{
		Filters: []Filter{{Field: "brand", Op: "=", Value: "KIA"}},
		Sort:    []SortKey{{Field: "price", Desc: true}},
		Nulls:   "last",
		Limit:   2,
	}
	page, total := ApplyList(cars(), p)
	assert.Equal(t, 3, total)
	assert.Equal(t, []any{"Ceed", "Rio"}, lo.Map(page, func(r map[string]any, _ int) any { return r["model"] }))

	p.Offset = 2
	page, _ = ApplyList(cars(), p)
	require.Len(t, page, 1)
	assert.Equal(t, "Picanto", page[0]["model"])

	p.Offset = 10
	page, total = ApplyList(cars(), p)
	assert.Empty(t, page)
	assert.Equal(t, 3, total)
}

func TestApplyListNullsFirstAndNumericCompare(t *testing.T) {
	page, _ := ApplyList(cars(), ListParams{Sort: []SortKey{{Field: "price"}}, Nulls: "first"})
	assert.Equal(t, []any{"Picanto", "Rio", "Ceed", "Civic"}, lo.Map(page, func(r map[string]any, _ int) any { return r["model"] }))

	page, total := ApplyList(cars(), ListParams{Filters: []Filter{{Field: "price", Op: ">", Value: "100"}}})
	assert.Equal(t, 2, total)
	assert.ElementsMatch(t, []any{"Ceed", "Civic"}, lo.Map(page, func(r map[string]any, _ int) any { return r["model"] }))

	_, total = ApplyList(cars(), ListParams{Filters: []Filter{{Field: "model", Op: "*", Value: "IC"}}})
	assert.Equal(t, 2, total) // Picanto, Civic
}

func TestQuoteIdent(t *testing.T) {
	q, err := quoteIdent(datadef.SourceMySQL, "shop.order")
	require.NoError(t, err)
	assert.Equal(t, "`shop`.`order`", q)

	q, err = quoteIdent(datadef.SourcePostgres, `we"ird`)
	require.NoError(t, err)
	assert.Equal(t, `"we""ird"`, q)

	_, err = quoteIdent(datadef.SourcePostgres, "a..b")
	assert.Error(t, err)
}

func TestBuildInsert(t *testing.T) {
	stmt, args, err := buildInsert(datadef.SourcePostgres, "cars", map[string]any{"model": "Leaf", "id": 1, "tags": []any{"ev"}})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "cars" ("id", "model", "tags") VALUES ($1, $2, $3)`, stmt)
	assert.Equal(t, []any{1, "Leaf", `["ev"]`}, args)

	stmt, _, err = buildInsert(datadef.SourceMySQL, "cars", map[string]any{"id": 1})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `cars` (`id`) VALUES (?)", stmt)
}

func TestMapSQLType(t *testing.T) {
	cases := map[string]datadef.FieldType{
		"varchar(255)":             datadef.FieldString,
		"int(11)":                  datadef.FieldNumber,
		"decimal(10,2)":            datadef.FieldNumber,
		"double precision":         datadef.FieldNumber,
		"tinyint(1)":               datadef.FieldBoolean,
		"boolean":                  datadef.FieldBoolean,
		"datetime":                 datadef.FieldDate,
		"timestamp with time zone": datadef.FieldDate,
		"json":                     datadef.FieldObject,
		"jsonb":                    datadef.FieldObject,
		"ARRAY":                    datadef.FieldArray,
		"text":                     datadef.FieldString,
		"int(11) unsigned":         datadef.FieldNumber,
		"bigint":                   datadef.FieldNumber,
		"tinyint(4)":               datadef.FieldNumber,
		"bit(1)":                   datadef.FieldBoolean,
		"integer[]":                datadef.FieldArray,
		"interval":                 datadef.FieldString,
		"point":                    datadef.FieldString,
		"binary(16)":               datadef.FieldString,
		"character varying":        datadef.FieldString,
		"time without time zone":   datadef.FieldDate,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapSQLType(in), in)
	}
}
