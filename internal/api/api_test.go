package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"designer/internal/access"
	"designer/internal/blob"
	"designer/internal/datadef"
	"designer/internal/iface"
	"designer/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	d         *Designer
	r         *gin.Engine
	appRoot   string
	ifaceFile string
}

// appRoot/static/data/cars.json, определения в appRoot/src/lib/datadef.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "static", "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "cars.json"),
		[]byte(`[{"car_id": 1, "model": "Leaf", "ev": true}, {"car_id": 2, "model": "Corolla", "ev": false}]`), 0o644))

	ifaceFile := filepath.Join(root, "src", "lib", "utils", "customUtils.ts")
	feed := notify.NewFeed(50)
	d := &Designer{
		Defs:         datadef.NewManager(filepath.Join(root, "src", "lib", "datadef"), nil),
		Access:       access.NewManager(blob.NewResolver(root, ""), nil),
		Ifaces:       iface.NewGenerator(ifaceFile, nil),
		Scanner:      iface.Scanner{Root: root},
		Feed:         feed,
		Notifier:     notify.Multi{feed},
		QueryTimeout: 5 * time.Second,
	}
	return &fixture{d: d, r: NewRouter(d), appRoot: root, ifaceFile: ifaceFile}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func filesSource() gin.H {
	return gin.H{
		"name":   "files",
		"type":   "filesystem",
		"config": gin.H{"basePath": "static/data", "format": "json"},
	}
}

func carsObject() gin.H {
	return gin.H{
		"name":       "cars",
		"source":     "cars.json",
		"primaryKey": "id",
		"fields": []gin.H{
			{"name": "id", "type": "number", "required": true, "mapping": "car_id"},
			{"name": "model", "type": "string", "required": true, "mapping": "model"},
			{"name": "electric", "type": "boolean", "mapping": "ev"},
		},
	}
}

func (f *fixture) saveCars(t *testing.T, generate bool) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/designer/data/save-config", gin.H{
		"dataSource":        filesSource(),
		"object":            carsObject(),
		"generateInterface": generate,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHealthAndRequestID(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "designer", body["service"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	w = httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
}

func TestSaveConfigAndLoad(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/designer/data/save-config", gin.H{
		"dataSource":        filesSource(),
		"object":            carsObject(),
		"generateInterface": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "files", body["dataSource"])
	assert.Equal(t, []any{"cars"}, body["objectSchemas"])
	assert.Equal(t, []any{"cars"}, body["interfaces"])

	ts, err := os.ReadFile(f.ifaceFile)
	require.NoError(t, err)
	assert.Contains(t, string(ts), "export interface Cars {\n  id: number;")

	w = f.do(t, http.MethodGet, "/designer/data/load-configs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	require.Len(t, body["configs"], 1)
	require.Len(t, body["objects"], 1)
	obj := body["objects"].([]any)[0].(map[string]any)
	assert.Equal(t, "cars", obj["name"])
	assert.Equal(t, "files", obj["dataSource"])
	assert.NotEmpty(t, obj["createdAt"])

	w = f.do(t, http.MethodGet, "/designer/data/load-configs?dataSource=other", nil)
	assert.Empty(t, decode(t, w)["objects"])

	w = f.do(t, http.MethodGet, "/designer/data/sources/files", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "filesystem", decode(t, w)["type"])

	var types []string
	for _, ev := range f.d.Feed.List() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{notify.DataSourceSaved, notify.ObjectSaved, notify.InterfaceUpdated}, types)

	w = f.do(t, http.MethodGet, "/designer/notifications", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []notify.Event
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 3)
}

func TestSaveConfigValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/designer/data/save-config", gin.H{"dataSource": filesSource()})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Validation failed", body["error"])
	assert.Contains(t, body["message"], "missing dataSource or object schema")

	broken := carsObject()
	broken["fields"] = []gin.H{}
	w = f.do(t, http.MethodPost, "/designer/data/save-config", gin.H{"dataSource": filesSource(), "object": broken})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Contains(t, body["details"], "cars: At least one field is required")

	// ничего не записано
	assert.Empty(t, f.d.Defs.LoadDataSources())

	w = f.do(t, http.MethodPost, "/designer/data/save-config", "{not json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", decode(t, w)["error"])
}

func TestObjectData(t *testing.T) {
	f := newFixture(t)
	f.saveCars(t, false)

	w := f.do(t, http.MethodGet, "/designer/data/objects/cars?_sort=-id", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "cars", body["object"])
	assert.Equal(t, "files", body["dataSource"])
	assert.Equal(t, 2.0, body["total"])
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, map[string]any{"id": 2.0, "model": "Corolla", "electric": false}, data[0])
	assert.Equal(t, "2", w.Header().Get("X-Total-Count"))

	w = f.do(t, http.MethodGet, "/designer/data/objects/CARS?model=Leaf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, 1.0, body["total"])

	w = f.do(t, http.MethodGet, "/designer/data/objects/trucks", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not found", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/designer/data/objects/cars", gin.H{"model": "Yaris"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body = decode(t, w)
	assert.Equal(t, []any{"Field 'id' is required"}, body["details"])

	w = f.do(t, http.MethodPost, "/designer/data/objects/cars", gin.H{"id": 3, "model": "Yaris"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported data source", decode(t, w)["error"])
}

func TestAnalyzeChanges(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/designer/data/analyze-changes", gin.H{"objectName": "cars"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/designer/data/analyze-changes", gin.H{
		"objectName": "cars", "dataSourceName": "files", "newObject": carsObject(),
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["isNew"])
	assert.Len(t, body["changes"].(map[string]any)["newFields"], 3)

	f.saveCars(t, false)
	next := carsObject()
	next["fields"] = append(next["fields"].([]gin.H), gin.H{"name": "year", "type": "number", "mapping": "year"})
	w = f.do(t, http.MethodPost, "/designer/data/analyze-changes", gin.H{
		"objectName": "cars", "dataSourceName": "files", "newObject": next,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["isNew"])
	changes := body["changes"].(map[string]any)
	require.Len(t, changes["newFields"], 1)
	assert.Equal(t, "year", changes["newFields"].([]any)[0].(map[string]any)["name"])
	assert.Empty(t, changes["removedFields"])
	assert.Contains(t, body["yamlDiff"], "+ ")
}

func TestDeleteObjectAndSource(t *testing.T) {
	f := newFixture(t)
	f.saveCars(t, true)

	w := f.do(t, http.MethodDelete, "/designer/data/sources/files", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Conflict", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/designer/data/delete-object", gin.H{
		"objectName": "cars", "dataSourceName": "files", "removeInterface": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"success": true, "interfaceRemoved": true}, decode(t, w))

	w = f.do(t, http.MethodPost, "/designer/data/delete-object", gin.H{"objectName": "cars", "dataSourceName": "files"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/designer/data/sources/files", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/designer/data/sources/files", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/designer/data/sources", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestDiscovery(t *testing.T) {
	f := newFixture(t)
	draft := filesSource()

	w := f.do(t, http.MethodPost, "/designer/data/test-connection", draft)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "File system path verified: static/data", body["message"])

	w = f.do(t, http.MethodPost, "/designer/data/available-sources", draft)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"cars.json"}, decode(t, w)["sources"])

	w = f.do(t, http.MethodPost, "/designer/data/file-fields", gin.H{
		"config": draft["config"], "filename": "cars.json",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fields := decode(t, w)["fields"].([]any)
	require.Len(t, fields, 3)
	assert.Equal(t, map[string]any{"name": "car_id", "type": "number", "required": false, "mapping": "car_id"}, fields[0])

	w = f.do(t, http.MethodPost, "/designer/data/file-fields", gin.H{
		"config": draft["config"], "filename": "missing.json",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/designer/data/table-fields", gin.H{
		"type": "rest", "config": gin.H{"baseUrl": "http://x"}, "table": "users",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Unsupported data source", decode(t, w)["error"])

	w = f.do(t, http.MethodPost, "/designer/data/test-connection", gin.H{"type": "ftp", "config": gin.H{}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/designer/data/available-sources", gin.H{"dataSource": "nope"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiscoveryRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/designer/data/test-connection", gin.H{
		"type": "mysql",
		"config": gin.H{
			"server": "localhost", "port": []int{1, 2}, "username": "root", "database": "shop",
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Validation failed", decode(t, w)["error"])

	for _, name := range []string{"../../etc/passwd", "/etc/passwd", ".."} {
		w = f.do(t, http.MethodPost, "/designer/data/file-fields", gin.H{
			"config": filesSource()["config"], "filename": name,
		})
		require.Equal(t, http.StatusBadRequest, w.Code, "%s: %s", name, w.Body.String())
		assert.Equal(t, "Invalid path", decode(t, w)["error"])
	}
}

func TestObjectDataRejectsInfiniteNumbers(t *testing.T) {
	f := newFixture(t)
	f.saveCars(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(f.appRoot, "static", "data", "cars.json"),
		[]byte(`[{"car_id": "Infinity", "model": "Leaf"}]`), 0o644))

	w := f.do(t, http.MethodGet, "/designer/data/objects/cars", nil)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "Invalid value", decode(t, w)["error"])
}

func TestInterfaces(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/designer/interfaces/cars", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"exists": false, "interfaceName": "Cars"}, decode(t, w))

	w = f.do(t, http.MethodPost, "/designer/interfaces", carsObject())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Cars", body["interfaceName"])
	assert.Contains(t, body["code"], "electric?: boolean;")

	w = f.do(t, http.MethodGet, "/designer/interfaces/cars", nil)
	assert.Equal(t, true, decode(t, w)["exists"])

	w = f.do(t, http.MethodGet, "/designer/interfaces/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), f.appRoot)
	var scan iface.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scan))
	require.Len(t, scan.Interfaces, 1)
	assert.Equal(t, "Cars", scan.Interfaces[0].Name)
	assert.Equal(t, "src/lib/utils/customUtils.ts", scan.Interfaces[0].RelativePath)
	assert.Equal(t, []string{"id", "model", "electric"}, scan.Interfaces[0].Fields)

	w = f.do(t, http.MethodGet, "/designer/interfaces/scan?path=../../etc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodDelete, "/designer/interfaces/cars", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"success": true, "removed": true}, decode(t, w))

	w = f.do(t, http.MethodPost, "/designer/interfaces", gin.H{"fields": []gin.H{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLint(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/designer/data/lint", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"ok": true, "issues": []any{}}, decode(t, w))

	dir := filepath.Join(f.d.Defs.Root(), "ghost")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "things.yaml"),
		[]byte("source: things\ndataSource: ghost\nfields:\n  - name: id\n    type: number\n    mapping: id\n"), 0o644))

	w = f.do(t, http.MethodGet, "/designer/data/lint", nil)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	issue := body["issues"].([]any)[0].(map[string]any)
	assert.Equal(t, "datasource_unknown", issue["code"])
}

func TestUploadFile(t *testing.T) {
	f := newFixture(t)
	f.saveCars(t, false)

	upload := func(path, name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, path, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, req)
		return w
	}

	w := upload("/designer/data/files/files", "trucks.json", `[{"id": 1}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "trucks.json", decode(t, w)["key"])
	_, err := os.Stat(filepath.Join(f.appRoot, "static", "data", "trucks.json"))
	require.NoError(t, err)

	w = upload("/designer/data/files/files", "notes.txt", "hi")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = upload("/designer/data/files/nope", "a.json", "[]")
	require.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/designer/data/files/files", gin.H{})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid upload", decode(t, w)["error"])
}
