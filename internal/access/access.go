// Package access читает и пишет данные источников (MySQL, PostgreSQL, REST, файлы)
// через единый интерфейс и приводит записи к форме ObjectDef.
package access

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"designer/internal/blob"
	"designer/internal/datadef"
)

// BlobOpener открывает хранилище по basePath (локальный каталог или gs://).
type BlobOpener interface {
	Open(ctx context.Context, basePath string) (blob.Store, error)
}

type Manager struct {
	blobs BlobOpener
	http  *http.Client
}

// NewManager: client == nil — клиент с таймаутом 30s на транспорте по умолчанию.
func NewManager(blobs BlobOpener, client *http.Client) *Manager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Manager{blobs: blobs, http: client}
}

// Fetch читает все записи объекта из его источника (ещё не смапленные).
func (m *Manager) Fetch(ctx context.Context, obj datadef.ObjectDef, ds datadef.DataSource) (any, error) {
	switch ds.Type {
	case datadef.SourceMySQL, datadef.SourcePostgres:
		tbl, err := quoteIdent(ds.Type, obj.Source)
		if err != nil {
			return nil, err
		}
		return querySQL(ctx, ds, "SELECT * FROM "+tbl)
	case datadef.SourceREST:
		return m.QueryREST(ctx, ds, obj.Source)
	case datadef.SourceFileSystem:
		return m.QueryFileSystem(ctx, ds, obj.Source)
	default:
		return nil, fmt.Errorf("%w: unsupported data source type %q", ErrWrongSourceType, ds.Type)
	}
}

// FetchObjects — Fetch + MapDataToObject.
func (m *Manager) FetchObjects(ctx context.Context, obj datadef.ObjectDef, ds datadef.DataSource) ([]map[string]any, error) {
	raw, err := m.Fetch(ctx, obj, ds)
	if err != nil {
		return nil, err
	}
	return MapDataToObject(raw, obj)
}

// ToSource проверяет обязательные поля и переводит запись из имён полей в имена источника.
func ToSource(obj datadef.ObjectDef, record map[string]any) (map[string]any, error) {
	var problems []string
	for _, f := range obj.Fields {
		if v, ok := record[f.Name]; f.Required && (!ok || v == nil) {
			problems = append(problems, fmt.Sprintf("Field '%s' is required", f.Name))
		}
	}
	if len(problems) > 0 {
		return nil, &datadef.ValidationError{Problems: problems}
	}

	out := make(map[string]any, len(obj.Fields))
	for _, f := range obj.Fields {
		v, ok := record[f.Name]
		if !ok {
			continue
		}
		key := f.Mapping
		if key == "" {
			key = f.Name
		}
		out[key] = v
	}
	return out, nil
}

// Insert добавляет запись: INSERT для SQL, POST JSON на endpoint объекта для REST.
func (m *Manager) Insert(ctx context.Context, obj datadef.ObjectDef, ds datadef.DataSource, record map[string]any) error {
	row, err := ToSource(obj, record)
	if err != nil {
		return err
	}
	switch ds.Type {
	case datadef.SourceMySQL, datadef.SourcePostgres:
		return insertSQL(ctx, ds, obj.Source, row)
	case datadef.SourceREST:
		cfg, err := datadef.REST(ds.Config)
		if err != nil {
			return err
		}
		_, err = m.doREST(ctx, cfg, http.MethodPost, obj.Source, row)
		return err
	case datadef.SourceFileSystem:
		return fmt.Errorf("%w: insert into filesystem source %s", ErrUnsupportedFormat, ds.Name)
	default:
		return fmt.Errorf("%w: unsupported data source type %q", ErrWrongSourceType, ds.Type)
	}
}
