package listener

import (
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"notify_poller/internal/model"
)

type EventKind int

const (
	EventCreated EventKind = iota + 1
	EventRead
	EventAllRead
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventRead:
		return "read"
	case EventAllRead:
		return "all_read"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is one state change delivered to listeners. Notification is set for
// EventCreated and EventRead; ID is set for every kind except EventAllRead.
type Event struct {
	Kind         EventKind
	ID           string
	Notification model.Notification
}

type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a plain function to a Listener. Func values are not
// comparable, so every registration of a ListenerFunc is a separate entry.
type ListenerFunc func(Event)

func (f ListenerFunc) HandleEvent(e Event) { f(e) }

type entry struct {
	l       Listener
	keyed   bool
	removed atomic.Bool
}

type Registry struct {
	mu      sync.RWMutex
	entries map[*entry]struct{}
	byValue map[Listener]*entry
	order   []*entry
	log     *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[*entry]struct{}),
		byValue: make(map[Listener]*entry),
		log:     logger,
	}
}

// Add registers l and returns a function that removes exactly that
// registration. The returned function may be called any number of times.
func (r *Registry) Add(l Listener) func() {
	if l == nil {
		return func() {}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	keyed := reflect.ValueOf(l).Comparable()
	if keyed {
		if e, ok := r.byValue[l]; ok {
			return r.remover(e)
		}
	}

	e := &entry{l: l, keyed: keyed}
	r.entries[e] = struct{}{}
	r.order = append(r.order, e)
	if keyed {
		r.byValue[l] = e
	}
	return r.remover(e)
}

func (r *Registry) remover(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.remove(e) })
	}
}

func (r *Registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e]; !ok {
		return
	}
	e.removed.Store(true)
	delete(r.entries, e)
	if e.keyed {
		delete(r.byValue, e.l)
	}
	for i, o := range r.order {
		if o == e {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := range r.entries {
		e.removed.Store(true)
	}
	r.entries = make(map[*entry]struct{})
	r.byValue = make(map[Listener]*entry)
	r.order = nil
}

// Broadcast delivers e to every registered listener in registration order
// and returns the number of listeners that handled it.
func (r *Registry) Broadcast(e Event) int {
	r.mu.RLock()
	targets := make([]*entry, len(r.order))
	copy(targets, r.order)
	r.mu.RUnlock()

	delivered := 0
	for _, t := range targets {
		// Skip entries unsubscribed after the snapshot was taken.
		if t.removed.Load() {
			continue
		}
		if r.deliver(t, e) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) deliver(t *entry, e Event) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.Error("listener panicked",
				zap.Any("error", recovered),
				zap.String("event", e.Kind.String()),
				zap.String("notification_id", e.ID),
			)
			ok = false
		}
	}()
	t.l.HandleEvent(e)
	return true
}
