package datadef

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"designer/internal/fsutil"
	"designer/internal/lock"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const AccessFile = "_access.yaml"

// Manager хранит определения в YAML на диске:
//
//	<root>/_access.yaml               — источники данных
//	<root>/<dataSource>/<object>.yaml — объекты (имя объекта = имя файла)
//
// Кэша нет: каждый вызов читает файлы заново.
type Manager struct {
	root  string
	locks lock.Locker
	now   func() time.Time
}

func NewManager(root string, locker lock.Locker) *Manager {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Manager{
		root:  root,
		locks: locker,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Root() string { return m.root }

func (m *Manager) accessPath() string { return filepath.Join(m.root, AccessFile) }

func (m *Manager) objectPath(dataSource, name string) string {
	return filepath.Join(m.root, dataSource, name+".yaml")
}

// старый плоский формат: <root>/<object>.yaml с dataSource внутри
func (m *Manager) legacyObjectPath(name string) string {
	return filepath.Join(m.root, name+".yaml")
}

func (m *Manager) timestamp() string { return m.now().Format(time.RFC3339) }

// ===== DATA SOURCES =====

// readAccess отличает «файла нет» (пустой конфиг) от «файл битый» (ошибка).
func (m *Manager) readAccess() (AccessConfig, error) {
	var ac AccessConfig
	b, err := os.ReadFile(m.accessPath())
	if errors.Is(err, fs.ErrNotExist) {
		return ac, nil
	}
	if err != nil {
		return ac, err
	}
	if err := yaml.Unmarshal(b, &ac); err != nil {
		return ac, fmt.Errorf("parse %s: %w", AccessFile, err)
	}
	return ac, nil
}

// LoadDataSources — битый _access.yaml логируется и считается пустым.
func (m *Manager) LoadDataSources() []DataSource {
	ac, err := m.readAccess()
	if err != nil {
		log.Error().Err(err).Str("path", m.accessPath()).Msg("Error loading data sources")
		return []DataSource{}
	}
	if ac.DataSources == nil {
		return []DataSource{}
	}
	return ac.DataSources
}

func (m *Manager) LoadDataSource(name string) (DataSource, error) {
	for _, ds := range m.LoadDataSources() {
		if ds.Name == name {
			return ds, nil
		}
	}
	return DataSource{}, fmt.Errorf("data source %q: %w", name, ErrNotFound)
}

// SaveDataSourceConfig добавляет или заменяет источник по имени.
func (m *Manager) SaveDataSourceConfig(ctx context.Context, ds DataSource) (DataSource, error) {
	if err := ValidateDataSource(ds); err != nil {
		return ds, err
	}

	unlock, err := m.locks.Lock(ctx, AccessFile)
	if err != nil {
		return ds, err
	}
	defer unlock()

	ac, err := m.readAccess()
	if err != nil {
		// битый файл не перезаписываем — иначе молча потеряем остальные источники
		return ds, fmt.Errorf("%w: refusing to overwrite unreadable %s: %v", ErrConflict, AccessFile, err)
	}

	now := m.timestamp()
	ds.UpdatedAt = now
	replaced := false
	for i, cur := range ac.DataSources {
		if cur.Name != ds.Name {
			continue
		}
		ds.CreatedAt = cur.CreatedAt
		if ds.CreatedAt == "" {
			ds.CreatedAt = now
		}
		ac.DataSources[i] = ds
		replaced = true
		break
	}
	if !replaced {
		ds.CreatedAt = now
		ac.DataSources = append(ac.DataSources, ds)
	}

	if err := writeYAML(m.accessPath(), ac); err != nil {
		return ds, err
	}
	log.Info().Str("dataSource", ds.Name).Str("type", string(ds.Type)).Bool("replaced", replaced).Msg("data source saved")
	return ds, nil
}

// DeleteDataSource не даёт удалить источник, на который ещё ссылаются объекты.
func (m *Manager) DeleteDataSource(ctx context.Context, name string) error {
	unlock, err := m.locks.Lock(ctx, AccessFile)
	if err != nil {
		return err
	}
	defer unlock()

	// проверка под блокировкой: объект мог появиться, пока ждали
	if objs := m.LoadObjectsForDataSource(name); len(objs) > 0 {
		return fmt.Errorf("%w: data source %q is used by %d object(s)", ErrConflict, name, len(objs))
	}

	ac, err := m.readAccess()
	if err != nil {
		return fmt.Errorf("%w: refusing to overwrite unreadable %s: %v", ErrConflict, AccessFile, err)
	}
	kept := ac.DataSources[:0]
	found := false
	for _, ds := range ac.DataSources {
		if ds.Name == name {
			found = true
			continue
		}
		kept = append(kept, ds)
	}
	if !found {
		return fmt.Errorf("data source %q: %w", name, ErrNotFound)
	}
	ac.DataSources = kept
	return writeYAML(m.accessPath(), ac)
}

// ===== OBJECTS =====

func readObjectFile(path, name, dataSource string) (ObjectDef, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ObjectDef{}, err
	}
	var obj ObjectDef
	if err := yaml.Unmarshal(b, &obj); err != nil {
		return ObjectDef{}, fmt.Errorf("parse %s: %w", path, err)
	}
	obj.Name = name
	if obj.DataSource == "" {
		obj.DataSource = dataSource
	}
	return obj, nil
}

// LoadObjectDefinition читает <dataSource>/<name>.yaml (с откатом на старый плоский формат).
// Битый YAML логируется и трактуется как отсутствующий объект.
func (m *Manager) LoadObjectDefinition(name, dataSource string) (ObjectDef, error) {
	if !safeSegment(name) || !safeSegment(dataSource) {
		return ObjectDef{}, fmt.Errorf("object %s/%s: %w", dataSource, name, ErrNotFound)
	}

	obj, err := readObjectFile(m.objectPath(dataSource, name), name, dataSource)
	if errors.Is(err, fs.ErrNotExist) {
		obj, err = readObjectFile(m.legacyObjectPath(name), name, "")
		if err == nil && obj.DataSource != dataSource {
			err = fs.ErrNotExist
		}
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("object", name).Str("dataSource", dataSource).Msg("Error loading object definition")
		}
		return ObjectDef{}, fmt.Errorf("object %s/%s: %w", dataSource, name, ErrNotFound)
	}
	return obj, nil
}

// LoadObjectDefinitions обходит все каталоги источников; файлы с "_" пропускаются.
func (m *Manager) LoadObjectDefinitions() []ObjectDef {
	out := []ObjectDef{}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Error().Err(err).Str("root", m.root).Msg("Error reading datadef directory")
		}
		return out
	}

	seen := map[string]struct{}{}
	for _, e := range entries {
		if e.IsDir() {
			if !safeSegment(e.Name()) {
				continue
			}
			for _, obj := range m.loadDir(filepath.Join(m.root, e.Name()), e.Name()) {
				seen[obj.DataSource+"/"+obj.Name] = struct{}{}
				out = append(out, obj)
			}
		}
	}
	// старые файлы в корне — только если не перекрыты новым форматом
	for _, obj := range m.loadDir(m.root, "") {
		if _, dup := seen[obj.DataSource+"/"+obj.Name]; dup {
			continue
		}
		out = append(out, obj)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DataSource != out[j].DataSource {
			return out[i].DataSource < out[j].DataSource
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *Manager) loadDir(dir, dataSource string) []ObjectDef {
	var out []ObjectDef
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Error reading object directory")
		return nil
	}
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || !isObjectFile(fn) {
			continue
		}
		name := strings.TrimSuffix(fn, filepath.Ext(fn))
		obj, err := readObjectFile(filepath.Join(dir, fn), name, dataSource)
		if err != nil {
			log.Error().Err(err).Str("file", fn).Msg("Error loading object definition")
			continue
		}
		out = append(out, obj)
	}
	return out
}

func isObjectFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") && !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, ".")
}

func (m *Manager) LoadObjectsForDataSource(dataSource string) []ObjectDef {
	out := []ObjectDef{}
	for _, obj := range m.LoadObjectDefinitions() {
		if obj.DataSource == dataSource {
			out = append(out, obj)
		}
	}
	return out
}

func (m *Manager) ObjectExists(name, dataSource string) bool {
	_, err := m.LoadObjectDefinition(name, dataSource)
	return err == nil
}

func objectLockKey(dataSource, name string) string { return "object:" + dataSource + "/" + name }

// SaveObjectDefinition валидирует и пишет объект; createdAt существующего сохраняется.
func (m *Manager) SaveObjectDefinition(ctx context.Context, obj ObjectDef) (ObjectDef, error) {
	if problems := ValidateObjectDefinition(obj); len(problems) > 0 {
		return obj, &ValidationError{Problems: problems}
	}

	unlock, err := m.locks.Lock(ctx, objectLockKey(obj.DataSource, obj.Name))
	if err != nil {
		return obj, err
	}
	defer unlock()

	now := m.timestamp()
	obj.CreatedAt = now
	if prev, err := m.LoadObjectDefinition(obj.Name, obj.DataSource); err == nil && prev.CreatedAt != "" {
		obj.CreatedAt = prev.CreatedAt
	}
	obj.UpdatedAt = now

	onDisk := obj
	onDisk.Name = ""
	if err := writeYAML(m.objectPath(obj.DataSource, obj.Name), onDisk); err != nil {
		return obj, err
	}

	// переезд со старого плоского формата
	legacy := m.legacyObjectPath(obj.Name)
	if old, err := readObjectFile(legacy, obj.Name, ""); err == nil && old.DataSource == obj.DataSource {
		if err := os.Remove(legacy); err != nil {
			log.Warn().Err(err).Str("path", legacy).Msg("failed to remove legacy object file")
		}
	}

	log.Info().Str("object", obj.Name).Str("dataSource", obj.DataSource).Int("fields", len(obj.Fields)).Msg("object definition saved")
	return obj, nil
}

func (m *Manager) DeleteObjectDefinition(ctx context.Context, name, dataSource string) error {
	if !safeSegment(name) || !safeSegment(dataSource) {
		return fmt.Errorf("object %s/%s: %w", dataSource, name, ErrNotFound)
	}

	unlock, err := m.locks.Lock(ctx, objectLockKey(dataSource, name))
	if err != nil {
		return err
	}
	defer unlock()

	path := m.objectPath(dataSource, name)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		legacy := m.legacyObjectPath(name)
		if old, lerr := readObjectFile(legacy, name, ""); lerr == nil && old.DataSource == dataSource {
			path = legacy
		} else {
			return fmt.Errorf("object %s/%s: %w", dataSource, name, ErrNotFound)
		}
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete object %s/%s: %w", dataSource, name, err)
	}
	log.Info().Str("object", name).Str("dataSource", dataSource).Msg("object definition deleted")
	return nil
}

// ResolveObject ищет объект без учёта регистра. Если dataSource пуст —
// имя должно быть уникальным среди всех источников.
func (m *Manager) ResolveObject(name, dataSource string) (ObjectDef, error) {
	if dataSource != "" {
		if obj, err := m.LoadObjectDefinition(name, dataSource); err == nil {
			return obj, nil
		}
	}

	nl := strings.ToLower(strings.TrimSpace(name))
	dl := strings.ToLower(strings.TrimSpace(dataSource))
	var found []ObjectDef
	for _, obj := range m.LoadObjectDefinitions() {
		if strings.ToLower(obj.Name) != nl {
			continue
		}
		if dl != "" && strings.ToLower(obj.DataSource) != dl {
			continue
		}
		found = append(found, obj)
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return ObjectDef{}, fmt.Errorf("object %q: %w", name, ErrNotFound)
	default:
		return ObjectDef{}, fmt.Errorf("%w: object %q exists in %d data sources, specify dataSource", ErrConflict, name, len(found))
	}
}

// GetObjectWithDataSource — объект вместе с конфигом его источника.
func (m *Manager) GetObjectWithDataSource(name, dataSource string) (ObjectDef, DataSource, error) {
	obj, err := m.ResolveObject(name, dataSource)
	if err != nil {
		return ObjectDef{}, DataSource{}, err
	}
	ds, err := m.LoadDataSource(obj.DataSource)
	if err != nil {
		return obj, DataSource{}, err
	}
	return obj, ds, nil
}

// ===== YAML =====

func marshalYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeYAML(path string, v any) error {
	b, err := marshalYAML(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return fsutil.WriteFile(path, b, 0o644)
}
