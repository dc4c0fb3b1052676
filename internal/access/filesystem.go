package access

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"designer/internal/blob"
	"designer/internal/datadef"
)

// formatExt — расширения файлов, которые считаются данными формата.
var formatExt = map[string][]string{
	"json": {".json"},
	"csv":  {".csv"},
	"xml":  {".xml"},
}

func matchesFormat(name, format string) bool {
	exts, ok := formatExt[format]
	if !ok {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (m *Manager) fileStore(ctx context.Context, ds datadef.DataSource) (blob.Store, datadef.FileSystemConfig, error) {
	if ds.Type != datadef.SourceFileSystem {
		return nil, datadef.FileSystemConfig{}, fmt.Errorf("%w: %s is %s, not filesystem", ErrWrongSourceType, ds.Name, ds.Type)
	}
	cfg, err := datadef.FileSystem(ds.Config)
	if err != nil {
		return nil, cfg, err
	}
	st, err := m.blobs.Open(ctx, cfg.BasePath)
	if err != nil {
		return nil, cfg, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return st, cfg, nil
}

// QueryFileSystem читает файл относительно basePath и разбирает его по формату источника.
func (m *Manager) QueryFileSystem(ctx context.Context, ds datadef.DataSource, filename string) (any, error) {
	st, cfg, err := m.fileStore(ctx, ds)
	if err != nil {
		return nil, err
	}
	raw, err := st.Get(ctx, filename)
	if errors.Is(err, blob.ErrNotExist) {
		return nil, fmt.Errorf("error reading file %s: %w", filename, datadef.ErrNotFound)
	}
	if errors.Is(err, blob.ErrInvalidKey) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error reading file %s: %w", ErrBackend, filename, err)
	}
	return decodeFile(raw, cfg.Format, filename)
}

func decodeFile(raw []byte, format, filename string) (any, error) {
	switch format {
	case "json":
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("%w: error parsing %s: %v", ErrBadValue, filename, err)
		}
		return out, nil
	case "csv":
		return decodeCSV(raw, filename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// decodeCSV: первая строка — заголовок; записи — map по заголовку, значения строками.
func decodeCSV(raw []byte, filename string) ([]any, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", ErrBadValue, filename, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	out := []any{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: error parsing %s: %v", ErrBadValue, filename, err)
		}
		item := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				item[col] = rec[i]
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// UploadFile кладёт файл в хранилище источника.
func (m *Manager) UploadFile(ctx context.Context, ds datadef.DataSource, name string, r io.Reader, contentType string) (blob.Object, error) {
	st, cfg, err := m.fileStore(ctx, ds)
	if err != nil {
		return blob.Object{}, err
	}
	if !matchesFormat(name, cfg.Format) {
		return blob.Object{}, fmt.Errorf("%w: %s does not match format %s", ErrUnsupportedFormat, name, cfg.Format)
	}
	obj, err := st.Put(ctx, name, r, contentType)
	if errors.Is(err, blob.ErrInvalidKey) {
		return blob.Object{}, err
	}
	if err != nil {
		return blob.Object{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return obj, nil
}
