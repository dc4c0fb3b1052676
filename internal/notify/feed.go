package notify

import (
	"context"
	"sync"
)

// Feed — последние N событий в памяти, старые вытесняются.
type Feed struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	full bool
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 100
	}
	return &Feed{buf: make([]Event, size)}
}

func (f *Feed) Notify(_ context.Context, ev Event) error {
	ev = stamp(ev)
	f.mu.Lock()
	f.buf[f.next] = ev
	f.next = (f.next + 1) % len(f.buf)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()
	return nil
}

// List — от старых к новым.
func (f *Feed) List() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.full {
		return append([]Event{}, f.buf[:f.next]...)
	}
	out := make([]Event, 0, len(f.buf))
	out = append(out, f.buf[f.next:]...)
	return append(out, f.buf[:f.next]...)
}
