package listener

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	events []Event
}

func (r *recorder) HandleEvent(e Event) {
	r.events = append(r.events, e)
}

type boxListener struct {
	inner any
}

func (b boxListener) HandleEvent(e Event) {
	b.inner.(func(Event))(e)
}

func TestRegistryAdd(t *testing.T) {
	t.Run("same listener twice is delivered once", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		rec := &recorder{}
		reg.Add(rec)
		reg.Add(rec)

		require.Equal(t, 1, reg.Len())
		require.Equal(t, 1, reg.Broadcast(Event{Kind: EventCreated, ID: "n-1"}))
		require.Len(t, rec.events, 1)
	})

	t.Run("func listeners are distinct entries", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		calls := 0
		fn := ListenerFunc(func(Event) { calls++ })
		reg.Add(fn)
		reg.Add(fn)

		require.Equal(t, 2, reg.Len())
		reg.Broadcast(Event{Kind: EventCreated})
		require.Equal(t, 2, calls)
	})

	t.Run("comparable type holding a func is not keyed", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		calls := 0
		l := boxListener{inner: func(Event) { calls++ }}

		require.NotPanics(t, func() {
			reg.Add(l)
			reg.Add(l)
		})
		require.Equal(t, 2, reg.Len())
		reg.Broadcast(Event{Kind: EventCreated})
		require.Equal(t, 2, calls)
	})

	t.Run("nil listener is ignored", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		unsubscribe := reg.Add(nil)
		unsubscribe()
		require.Equal(t, 0, reg.Len())
	})
}

func TestRegistryUnsubscribe(t *testing.T) {
	t.Run("removes exactly that entry", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		a, b := &recorder{}, &recorder{}
		unsubscribeA := reg.Add(a)
		reg.Add(b)

		unsubscribeA()
		reg.Broadcast(Event{Kind: EventCreated, ID: "n-1"})

		require.Empty(t, a.events)
		require.Len(t, b.events, 1)
	})

	t.Run("idempotent", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		a, b := &recorder{}, &recorder{}
		unsubscribeA := reg.Add(a)
		reg.Add(b)

		unsubscribeA()
		unsubscribeA()
		require.Equal(t, 1, reg.Len())
	})

	t.Run("stale handle after re-add does not remove the new entry", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		rec := &recorder{}
		first := reg.Add(rec)
		first()
		reg.Add(rec)

		first()
		require.Equal(t, 1, reg.Len())
		reg.Broadcast(Event{Kind: EventRead, ID: "n-1"})
		require.Len(t, rec.events, 1)
	})

	t.Run("unsubscribe during broadcast stops later delivery", func(t *testing.T) {
		reg := NewRegistry(zap.NewNop())
		late := &recorder{}
		var unsubscribeLate func()
		reg.Add(ListenerFunc(func(Event) { unsubscribeLate() }))
		unsubscribeLate = reg.Add(late)

		reg.Broadcast(Event{Kind: EventCreated})
		require.Empty(t, late.events)
	})
}

func TestRegistryBroadcastRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	reg := NewRegistry(zap.New(core))

	after := &recorder{}
	reg.Add(ListenerFunc(func(Event) { panic("boom") }))
	reg.Add(after)

	delivered := reg.Broadcast(Event{Kind: EventCreated, ID: "n-1"})

	require.Equal(t, 1, delivered)
	require.Len(t, after.events, 1)
	require.Equal(t, 1, logs.FilterMessage("listener panicked").Len())
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	rec := &recorder{}
	unsubscribe := reg.Add(rec)
	reg.Clear()

	require.Equal(t, 0, reg.Len())
	require.Equal(t, 0, reg.Broadcast(Event{Kind: EventCreated}))
	unsubscribe()
	require.Empty(t, rec.events)
}

func TestEventKindString(t *testing.T) {
	require.Equal(t, "created", EventCreated.String())
	require.Equal(t, "all_read", EventAllRead.String())
	require.Equal(t, "unknown", EventKind(0).String())
}
