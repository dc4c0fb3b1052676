package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"designer/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const carsYAML = `source: cars.json
primaryKey: id
dataSource: files
fields:
  - name: id
    type: number
    required: true
    mapping: id
`

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCheck(t *testing.T) {
	root := t.TempDir()

	p := filepath.Join(root, "files", "cars.yaml")
	write(t, p, carsYAML)
	ev := Check(root, p)
	assert.Equal(t, notify.DatadefChanged, ev.Type)
	assert.Equal(t, notify.StatusInfo, ev.Status)
	assert.Equal(t, "cars", ev.Object)
	assert.Equal(t, "files", ev.DataSource)
	assert.Equal(t, "files/cars.yaml changed", ev.Message)

	write(t, p, "fields: [oops")
	ev = Check(root, p)
	assert.Equal(t, notify.DatadefInvalid, ev.Type)
	assert.Equal(t, notify.StatusError, ev.Status)
	assert.Contains(t, ev.Message, "files/cars.yaml: ")

	write(t, p, "source: cars.json\nfields: []\n")
	ev = Check(root, p)
	assert.Equal(t, notify.DatadefInvalid, ev.Type)
	assert.Contains(t, ev.Message, "At least one field is required")

	require.NoError(t, os.Remove(p))
	ev = Check(root, p)
	assert.Equal(t, notify.DatadefChanged, ev.Type)
	assert.Equal(t, "files/cars.yaml removed", ev.Message)

	acc := filepath.Join(root, "_access.yaml")
	write(t, acc, "dataSources:\n  - name: files\n    type: filesystem\n    config:\n      basePath: data\n")
	ev = Check(root, acc)
	assert.Equal(t, notify.DatadefChanged, ev.Type)
	assert.Equal(t, "_access.yaml changed: 1 data sources", ev.Message)

	write(t, acc, "dataSources:\n  - name: api\n    type: ftp\n")
	ev = Check(root, acc)
	assert.Equal(t, notify.DatadefInvalid, ev.Type)
	assert.Equal(t, "api", ev.DataSource)
	assert.Contains(t, ev.Message, `unsupported data source type "ftp"`)
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) find(typ, object string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == typ && ev.Object == object {
			return true
		}
	}
	return false
}

func TestWatcherReportsEdits(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "files"), 0o755))

	rec := &recorder{}
	w, err := New(root, rec, 50*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() { _ = w.Close() })

	write(t, filepath.Join(root, "files", "cars.yaml"), carsYAML)
	assert.Eventually(t, func() bool { return rec.find(notify.DatadefChanged, "cars") }, 5*time.Second, 20*time.Millisecond)

	write(t, filepath.Join(root, "files", "broken.yaml"), "fields: [oops")
	assert.Eventually(t, func() bool { return rec.find(notify.DatadefInvalid, "broken") }, 5*time.Second, 20*time.Millisecond)

	write(t, filepath.Join(root, "files", "notes.txt"), "ignored")
	time.Sleep(200 * time.Millisecond)
	assert.False(t, rec.find(notify.DatadefChanged, "notes"))
}
