package access

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"designer/internal/datadef"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// restFallbackEndpoints — если API не отдаёт список endpoints.
var restFallbackEndpoints = []string{
	"users", "products", "orders", "categories", "customers", "items", "transactions", "accounts",
}

// AvailableSources — таблицы / endpoints / файлы, из которых можно собрать объект.
func (m *Manager) AvailableSources(ctx context.Context, ds datadef.DataSource) ([]string, error) {
	switch ds.Type {
	case datadef.SourceMySQL:
		rows, err := QueryMySQL(ctx, ds, "SHOW TABLES")
		if err != nil {
			return nil, err
		}
		return firstColumn(rows), nil
	case datadef.SourcePostgres:
		cfg, err := datadef.Postgres(ds.Config)
		if err != nil {
			return nil, err
		}
		rows, err := QueryPostgres(ctx, ds,
			`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 ORDER BY table_name`, cfg.Schema)
		if err != nil {
			return nil, err
		}
		return firstColumn(rows), nil
	case datadef.SourceREST:
		return m.restEndpoints(ctx, ds), nil
	case datadef.SourceFileSystem:
		st, cfg, err := m.fileStore(ctx, ds)
		if err != nil {
			return nil, err
		}
		names, err := st.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackend, err)
		}
		return lo.Filter(names, func(n string, _ int) bool { return matchesFormat(n, cfg.Format) }), nil
	default:
		return nil, fmt.Errorf("%w: unsupported data source type %q", ErrWrongSourceType, ds.Type)
	}
}

func firstColumn(rows []map[string]any) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		for _, v := range r { // одна колонка (SHOW TABLES → Tables_in_<db>)
			out = append(out, toString(v))
			break
		}
	}
	return out
}

// restEndpoints: GET baseUrl/ и поле "endpoints"; иначе типовой список.
func (m *Manager) restEndpoints(ctx context.Context, ds datadef.DataSource) []string {
	data, err := m.QueryREST(ctx, ds, "")
	if err != nil {
		log.Info().Err(err).Str("dataSource", ds.Name).Msg("could not auto-discover REST endpoints")
		return restFallbackEndpoints
	}
	if obj, ok := data.(map[string]any); ok {
		if eps, ok := obj["endpoints"].([]any); ok {
			return lo.FilterMap(eps, func(e any, _ int) (string, bool) {
				s, ok := e.(string)
				return s, ok && s != ""
			})
		}
	}
	return restFallbackEndpoints
}

// ConnectionResult — ответ test-connection; ошибка подключения — success=false, а не error.
type ConnectionResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Schema  []string `json:"schema,omitempty"`
}

func (m *Manager) TestConnection(ctx context.Context, ds datadef.DataSource) (ConnectionResult, error) {
	switch ds.Type {
	case datadef.SourceMySQL, datadef.SourcePostgres:
		var db string
		if ds.Type == datadef.SourceMySQL {
			c, err := datadef.MySQL(ds.Config)
			if err != nil {
				return ConnectionResult{}, err
			}
			db = c.Database
		} else {
			c, err := datadef.Postgres(ds.Config)
			if err != nil {
				return ConnectionResult{}, err
			}
			db = c.Database
		}
		tables, err := m.AvailableSources(ctx, ds)
		if err != nil {
			return failed(err), nil
		}
		return ConnectionResult{
			Success: true,
			Message: "Connected successfully to database: " + db,
			Schema:  tables,
		}, nil

	case datadef.SourceREST:
		cfg, err := datadef.REST(ds.Config)
		if err != nil {
			return ConnectionResult{}, err
		}
		if _, err := m.QueryREST(ctx, ds, ""); err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				return ConnectionResult{Success: false, Message: se.Error()}, nil
			}
			return ConnectionResult{Success: false, Message: "Connection failed: " + err.Error()}, nil
		}
		return ConnectionResult{Success: true, Message: "Connected successfully to API: " + cfg.BaseURL}, nil

	case datadef.SourceFileSystem:
		st, cfg, err := m.fileStore(ctx, ds)
		if err != nil {
			if errors.Is(err, datadef.ErrInvalid) {
				return ConnectionResult{}, err
			}
			return failed(err), nil
		}
		if err := st.Check(ctx); err != nil {
			return ConnectionResult{Success: false, Message: "Path verification failed: " + err.Error()}, nil
		}
		return ConnectionResult{Success: true, Message: "File system path verified: " + cfg.BasePath}, nil

	default:
		return ConnectionResult{}, fmt.Errorf("%w: unsupported connection type %q", ErrWrongSourceType, ds.Type)
	}
}

func failed(err error) ConnectionResult {
	return ConnectionResult{Success: false, Message: "Connection failed: " + err.Error()}
}

// TableFields читает колонки таблицы из information_schema.
func (m *Manager) TableFields(ctx context.Context, ds datadef.DataSource, table string) ([]datadef.Field, error) {
	var rows []map[string]any
	var err error
	switch ds.Type {
	case datadef.SourceMySQL:
		c, cerr := datadef.MySQL(ds.Config)
		if cerr != nil {
			return nil, cerr
		}
		rows, err = QueryMySQL(ctx, ds,
			`SELECT COLUMN_NAME AS name, COLUMN_TYPE AS type, IS_NULLABLE AS nullable
			 FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
			 ORDER BY ORDINAL_POSITION`, c.Database, table)
	case datadef.SourcePostgres:
		c, cerr := datadef.Postgres(ds.Config)
		if cerr != nil {
			return nil, cerr
		}
		rows, err = QueryPostgres(ctx, ds,
			`SELECT column_name AS name, data_type AS type, is_nullable AS nullable
			 FROM information_schema.columns WHERE table_schema = $1 AND table_name = $2
			 ORDER BY ordinal_position`, c.Schema, table)
	default:
		return nil, fmt.Errorf("%w: table fields need a SQL data source, got %q", ErrWrongSourceType, ds.Type)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, datadef.ErrNotFound)
	}

	fields := make([]datadef.Field, 0, len(rows))
	for _, r := range rows {
		name := toString(r["name"])
		fields = append(fields, datadef.Field{
			Name:     name,
			Type:     MapSQLType(toString(r["type"])),
			Required: toString(r["nullable"]) == "NO",
			Mapping:  name,
		})
	}
	return fields, nil
}

func (m *Manager) APIFields(ctx context.Context, ds datadef.DataSource, endpoint string) ([]datadef.Field, error) {
	data, err := m.QueryREST(ctx, ds, endpoint)
	if err != nil {
		return nil, err
	}
	return InferFields(data), nil
}

func (m *Manager) FileFields(ctx context.Context, ds datadef.DataSource, filename string) ([]datadef.Field, error) {
	data, err := m.QueryFileSystem(ctx, ds, filename)
	if err != nil {
		return nil, err
	}
	return InferFields(data), nil
}

// InferFields строит поля по первой записи выборки; все необязательные, mapping = имя.
// Порядок ключей JSON не сохраняется, поэтому поля сортируются по имени.
func InferFields(data any) []datadef.Field {
	sample := data
	if arr, ok := data.([]any); ok {
		if len(arr) == 0 {
			return []datadef.Field{}
		}
		sample = arr[0]
	}
	rec, ok := sample.(map[string]any)
	if !ok {
		return []datadef.Field{}
	}

	keys := lo.Keys(rec)
	sort.Strings(keys)
	return lo.Map(keys, func(k string, _ int) datadef.Field {
		return datadef.Field{Name: k, Type: InferType(rec[k]), Required: false, Mapping: k}
	})
}

func InferType(v any) datadef.FieldType {
	switch t := v.(type) {
	case nil:
		return datadef.FieldString
	case float64, float32, int, int64, int32:
		return datadef.FieldNumber
	case bool:
		return datadef.FieldBoolean
	case []any:
		return datadef.FieldArray
	case map[string]any:
		return datadef.FieldObject
	case string:
		if looksLikeDate(t) {
			return datadef.FieldDate
		}
		return datadef.FieldString
	default:
		return datadef.FieldString
	}
}

// looksLikeDate: только строковые форматы дат, числа-строки датой не считаем.
func looksLikeDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return true
		}
	}
	return false
}
