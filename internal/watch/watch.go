// Package watch следит за каталогом определений и сообщает, когда YAML
// поменяли руками в обход API (и не сломали ли его при этом).
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"designer/internal/datadef"
	"designer/internal/notify"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher — корень и подкаталоги источников (глубже не бывает).
type Watcher struct {
	root     string
	notifier notify.Notifier
	debounce time.Duration

	w       *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]time.Time
	started bool
	done    chan struct{}
}

func New(root string, n notify.Notifier, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if n == nil {
		n = notify.Nop{}
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		root:     root,
		notifier: n,
		debounce: debounce,
		w:        fw,
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// Start подписывается на каталоги и запускает цикл; остановка по ctx, потом Close.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return err
	}
	if err := w.w.Add(w.root); err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			w.addDir(filepath.Join(w.root, e.Name()))
		}
	}
	log.Info().Str("dir", w.root).Msg("Watching datadef directory")
	w.started = true
	go w.run(ctx)
	return nil
}

func (w *Watcher) Close() error {
	err := w.w.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *Watcher) addDir(dir string) {
	if err := w.w.Add(dir); err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("watch subdirectory failed")
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	tick := time.NewTicker(w.debounce / 3)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("datadef watcher error")
		case now := <-tick.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if hidden(name) {
		return
	}
	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			w.addDir(ev.Name)
			return
		}
	}
	if !strings.HasSuffix(name, ".yaml") {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = time.Now()
	w.mu.Unlock()
}

// flush отдаёт файлы, которые не менялись дольше debounce.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var ready []string
	w.mu.Lock()
	for p, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, p)
			delete(w.pending, p)
		}
	}
	w.mu.Unlock()

	for _, p := range ready {
		ev := Check(w.root, p)
		if err := w.notifier.Notify(ctx, ev); err != nil {
			log.Warn().Err(err).Str("file", p).Msg("notify datadef change failed")
		}
	}
}

// Check перечитывает файл и собирает событие: changed, если разбирается и валиден,
// invalid с текстом проблемы иначе.
func Check(root, path string) notify.Event {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	ev := notify.Event{Type: notify.DatadefChanged, Status: notify.StatusInfo}
	dir := filepath.Dir(rel)
	name := strings.TrimSuffix(filepath.Base(rel), ".yaml")
	if dir != "." {
		ev.DataSource = dir
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		ev.Message = rel + " removed"
		if rel != datadef.AccessFile {
			ev.Object = name
		}
		return ev
	}
	if err != nil {
		return invalid(ev, rel, err.Error())
	}

	if rel == datadef.AccessFile {
		var ac datadef.AccessConfig
		if err := yaml.Unmarshal(b, &ac); err != nil {
			return invalid(ev, rel, err.Error())
		}
		for _, ds := range ac.DataSources {
			if err := datadef.ValidateDataSource(ds); err != nil {
				ev.DataSource = ds.Name
				return invalid(ev, rel, err.Error())
			}
		}
		ev.Message = fmt.Sprintf("%s changed: %d data sources", rel, len(ac.DataSources))
		return ev
	}

	ev.Object = name
	var obj datadef.ObjectDef
	if err := yaml.Unmarshal(b, &obj); err != nil {
		return invalid(ev, rel, err.Error())
	}
	obj.Name = name
	if obj.DataSource == "" {
		obj.DataSource = ev.DataSource
	}
	ev.DataSource = obj.DataSource
	if problems := datadef.ValidateObjectDefinition(obj); len(problems) > 0 {
		return invalid(ev, rel, strings.Join(problems, "; "))
	}
	ev.Message = rel + " changed"
	return ev
}

func invalid(ev notify.Event, rel, msg string) notify.Event {
	ev.Type = notify.DatadefInvalid
	ev.Status = notify.StatusError
	ev.Message = rel + ": " + msg
	return ev
}
