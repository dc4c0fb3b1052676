// Package notify — уведомления дизайнера: что сохранено, удалено, что сломалось.
package notify

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Типы событий.
const (
	DataSourceSaved   = "datasource.saved"
	DataSourceDeleted = "datasource.deleted"
	ObjectSaved       = "object.saved"
	ObjectDeleted     = "object.deleted"
	InterfaceUpdated  = "interface.updated"
	InterfaceRemoved  = "interface.removed"
	DatadefChanged    = "datadef.changed"
	DatadefInvalid    = "datadef.invalid"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	DataSource string    `json:"dataSource,omitempty"`
	Object     string    `json:"object,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID — ULID: сортируется по времени, как и лента.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// stamp проставляет id и время, если их нет.
func stamp(ev Event) Event {
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Status == "" {
		ev.Status = StatusInfo
	}
	return ev
}

// Multi рассылает событие всем получателям; ошибка одного не мешает остальным.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	ev = stamp(ev)
	var first error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop — когда уведомления не нужны (тесты, утилиты).
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
