package client

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/domain"
	"notify_poller/internal/listener"
	"notify_poller/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory store that honors mutations.
type fakeStore struct {
	mu        sync.Mutex
	items     []model.Notification
	listErr   error
	mutateErr error
	listCalls int

	entered chan struct{}
	release chan struct{}
}

func (s *fakeStore) add(n ...model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, n...)
}

func (s *fakeStore) setListErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *fakeStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *fakeStore) ListUnread(context.Context) ([]model.Notification, error) {
	s.mu.Lock()
	s.listCalls++
	entered, release := s.entered, s.release
	s.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Notification
	for _, n := range s.items {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) ListPage(_ context.Context, page, limit int) ([]model.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, false, s.listErr
	}
	start := (page - 1) * limit
	if start >= len(s.items) {
		return nil, false, nil
	}
	end := min(start+limit, len(s.items))
	return append([]model.Notification(nil), s.items[start:end]...), end < len(s.items), nil
}

func (s *fakeStore) UnreadCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return 0, s.listErr
	}
	count := 0
	for _, n := range s.items {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].IsRead = true
		}
	}
	return nil
}

func (s *fakeStore) MarkAllRead(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.items {
		s.items[i].IsRead = true
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	return nil
}

type storeMock struct {
	mock.Mock
}

func (m *storeMock) ListUnread(ctx context.Context) ([]model.Notification, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Notification), args.Error(1)
}

func (m *storeMock) ListPage(ctx context.Context, page, limit int) ([]model.Notification, bool, error) {
	args := m.Called(ctx, page, limit)
	return args.Get(0).([]model.Notification), args.Bool(1), args.Error(2)
}

func (m *storeMock) UnreadCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *storeMock) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *storeMock) MarkAllRead(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *storeMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type recorder struct {
	mu     sync.Mutex
	events []listener.Event
}

func (r *recorder) HandleEvent(e listener.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) created() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, e := range r.events {
		if e.Kind == listener.EventCreated {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (r *recorder) kinds() []listener.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kinds []listener.EventKind
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type notifierFunc func(model.Notification)

func (f notifierFunc) Attempt(_ context.Context, n model.Notification) { f(n) }

func chat(id string, created time.Time) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u-1",
		Type:      domain.NotificationTypeChatMessage,
		Data:      domain.ChatMessage{Common: domain.Common{Title: "Message " + id, Message: "hello"}},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

type harness struct {
	store *fakeStore
	cp    *checkpoint.Memory
	clock *fakeClock
	rec   *recorder
	c     *Client
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store: &fakeStore{},
		cp:    checkpoint.NewMemory(),
		clock: &fakeClock{now: t0},
		rec:   &recorder{},
	}
	opts = append([]Option{WithInterval(time.Hour), WithClock(h.clock.Now)}, opts...)
	h.c = New(h.store, h.cp, nil, zap.NewNop(), opts...)
	h.c.OnNotification(h.rec)
	t.Cleanup(h.c.Reset)
	return h
}

func (h *harness) checkpointAt(t *testing.T) (time.Time, bool) {
	t.Helper()
	at, ok, err := h.cp.Load(context.Background())
	require.NoError(t, err)
	return at, ok
}

func (h *harness) waitCheckpoint(t *testing.T, want time.Time) {
	t.Helper()
	require.Eventually(t, func() bool {
		at, ok := h.checkpointAt(t)
		return ok && at.Equal(want)
	}, time.Second, time.Millisecond)
}

// runCycle runs one cycle once the previous one has settled.
func (h *harness) runCycle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.c.CheckNow(context.Background()) }, time.Second, time.Millisecond)
}

func TestFirstCycleOnlyPrimes(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("a", t0.Add(-500*time.Millisecond)), chat("b", t0.Add(-200*time.Millisecond)))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0)

	require.Empty(t, h.rec.created())
	require.Len(t, h.c.Snapshot(), 2)
}

func TestCycleDeliversOnlyAfterCheckpoint(t *testing.T) {
	var attempted []string
	var mu sync.Mutex
	h := newHarness(t)
	h.c.notifier = notifierFunc(func(n model.Notification) {
		mu.Lock()
		defer mu.Unlock()
		attempted = append(attempted, n.ID)
	})
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("a", t0.Add(5*time.Second)), chat("b", t0.Add(-5*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(10*time.Second))

	require.Equal(t, []string{"a"}, h.rec.created())
	mu.Lock()
	require.Equal(t, []string{"a"}, attempted)
	mu.Unlock()
}

func TestPanickingNotifierKeepsFanOut(t *testing.T) {
	h := newHarness(t)
	var calls int
	var mu sync.Mutex
	h.c.notifier = notifierFunc(func(model.Notification) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			panic("quota")
		}
	})
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("a", t0.Add(time.Second)), chat("b", t0.Add(2*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(10*time.Second))

	require.Equal(t, []string{"a", "b"}, h.rec.created())
	mu.Lock()
	require.Equal(t, 2, calls)
	mu.Unlock()

	require.NotPanics(t, func() { h.runCycle(t) })
	require.Equal(t, []string{"a", "b"}, h.rec.created())
}

func TestFanOutKeepsServerOrder(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("late", t0.Add(9*time.Second)), chat("early", t0.Add(time.Second)), chat("mid", t0.Add(5*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(10*time.Second))

	require.Equal(t, []string{"late", "early", "mid"}, h.rec.created())
}

func TestUnsubscribedListenerMissesNextCycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0)

	gone := &recorder{}
	unsubscribe := h.c.OnNotification(gone)
	unsubscribe()
	unsubscribe()

	h.store.add(chat("a", t0.Add(time.Second)))
	h.clock.Set(t0.Add(2 * time.Second))
	h.runCycle(t)

	require.Empty(t, gone.events)
	require.Equal(t, []string{"a"}, h.rec.created())
}

func TestMarkAllAsReadZeroesCount(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("a", t0), chat("b", t0))
	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0)
	require.Equal(t, 2, h.c.UnreadCount(context.Background()))

	h.c.MarkAllAsRead(context.Background())

	require.Equal(t, 0, h.c.UnreadCount(context.Background()))
	require.Empty(t, h.c.UnreadNotifications(context.Background()))
	require.Contains(t, h.rec.kinds(), listener.EventAllRead)
	for _, n := range h.c.Snapshot() {
		require.True(t, n.IsRead, n.ID)
	}
}

func TestFetchFailureKeepsCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.setListErr(errors.New("connection refused"))

	require.NoError(t, h.c.Initialize("u-1"))
	require.Eventually(t, func() bool { return h.store.calls() >= 1 }, time.Second, time.Millisecond)

	at, ok := h.checkpointAt(t)
	require.True(t, ok)
	require.True(t, at.Equal(t0))

	h.store.setListErr(nil)
	h.store.add(chat("missed", t0.Add(3*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))
	h.runCycle(t)

	require.Equal(t, []string{"missed"}, h.rec.created())
	h.waitCheckpoint(t, t0.Add(10*time.Second))
}

func TestDeliveredNotificationIsNeverRedelivered(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("a", t0.Add(5*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(10*time.Second))
	require.Equal(t, []string{"a"}, h.rec.created())

	// Clock rolled back behind the notification.
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.clock.Set(t0.Add(time.Second))
	h.runCycle(t)

	require.Equal(t, []string{"a"}, h.rec.created())
}

func TestReadStateIsMonotonic(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("a", t0), chat("b", t0))
	h.store.mutateErr = errors.New("store unavailable")
	ctx := context.Background()

	require.Len(t, h.c.UnreadNotifications(ctx), 2)
	h.c.MarkAsRead(ctx, "a")

	// The store still reports a as unread.
	unread := h.c.UnreadNotifications(ctx)
	require.Len(t, unread, 1)
	require.Equal(t, "b", unread[0].ID)

	page := h.c.AllNotifications(ctx, 1, 10)
	require.Len(t, page.Items, 2)
	for _, n := range page.Items {
		require.Equal(t, n.ID == "a", n.IsRead, n.ID)
	}
	require.Equal(t, []listener.EventKind{listener.EventRead}, h.rec.kinds())

	h.c.MarkAsRead(ctx, "a")
	require.Len(t, h.rec.kinds(), 1)
}

func TestStaleFetchAfterMarkAllIsRead(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("a", t0))
	h.store.entered = make(chan struct{})
	h.store.release = make(chan struct{})

	done := make(chan []model.Notification)
	go func() { done <- h.c.UnreadNotifications(context.Background()) }()
	<-h.store.entered

	h.store.mu.Lock()
	h.store.mutateErr = errors.New("offline")
	h.store.mu.Unlock()
	h.c.MarkAllAsRead(context.Background())
	close(h.store.release)

	require.Empty(t, <-done)
	snap := h.c.Snapshot()
	require.Len(t, snap, 1)
	require.True(t, snap[0].IsRead)
}

func TestDeleteHidesNotification(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("a", t0), chat("b", t0))
	h.store.mutateErr = errors.New("store unavailable")
	ctx := context.Background()

	h.c.DeleteNotification(ctx, "a")

	unread := h.c.UnreadNotifications(ctx)
	require.Len(t, unread, 1)
	require.Equal(t, "b", unread[0].ID)
	require.Len(t, h.c.AllNotifications(ctx, 1, 10).Items, 1)
	require.Equal(t, []listener.EventKind{listener.EventDeleted}, h.rec.kinds())
}

func TestAllNotificationsPaging(t *testing.T) {
	h := newHarness(t)
	for i := range 5 {
		h.store.add(chat("n-"+strconv.Itoa(i), t0.Add(time.Duration(i)*time.Second)))
	}
	ctx := context.Background()

	first := h.c.AllNotifications(ctx, 1, 2)
	require.Len(t, first.Items, 2)
	require.True(t, first.HasMore)

	last := h.c.AllNotifications(ctx, 3, 2)
	require.Len(t, last.Items, 1)
	require.False(t, last.HasMore)
	require.Empty(t, h.c.AllNotifications(ctx, 4, 2).Items)

	t.Run("invalid arguments", func(t *testing.T) {
		for _, args := range [][2]int{{0, 10}, {1, 0}, {-1, -1}} {
			page := h.c.AllNotifications(ctx, args[0], args[1])
			require.NotNil(t, page.Items)
			require.Empty(t, page.Items)
			require.False(t, page.HasMore)
		}
	})

	t.Run("oversized server page is truncated", func(t *testing.T) {
		store := &storeMock{}
		store.On("ListPage", mock.Anything, 1, 2).Return([]model.Notification{chat("x", t0), chat("y", t0), chat("z", t0)}, false, nil).Once()
		c := New(store, nil, nil, zap.NewNop())

		page := c.AllNotifications(ctx, 1, 2)
		require.Len(t, page.Items, 2)
		require.True(t, page.HasMore)
		store.AssertExpectations(t)
	})
}

func TestTransportFailureDegradesToDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	storeErr := errors.New("dial tcp: connection refused")
	store := &storeMock{}
	store.On("ListUnread", mock.Anything).Return([]model.Notification(nil), storeErr).Once()
	store.On("ListPage", mock.Anything, 1, 10).Return([]model.Notification(nil), false, storeErr).Once()
	store.On("UnreadCount", mock.Anything).Return(0, storeErr).Once()
	store.On("MarkRead", mock.Anything, "a").Return(storeErr).Once()
	store.On("MarkAllRead", mock.Anything).Return(storeErr).Once()
	store.On("Delete", mock.Anything, "a").Return(storeErr).Once()

	c := New(store, nil, nil, zap.New(core))
	ctx := context.Background()

	require.Empty(t, c.UnreadNotifications(ctx))
	page := c.AllNotifications(ctx, 1, 10)
	require.Empty(t, page.Items)
	require.False(t, page.HasMore)
	require.Zero(t, c.UnreadCount(ctx))
	c.MarkAsRead(ctx, "a")
	c.MarkAllAsRead(ctx)
	c.DeleteNotification(ctx, "a")

	store.AssertExpectations(t)
	require.Equal(t, 6, logs.Len())
}

func TestInitialize(t *testing.T) {
	t.Run("empty user", func(t *testing.T) {
		h := newHarness(t)
		require.ErrorIs(t, h.c.Initialize(""), ErrEmptyUser)
		require.False(t, h.c.Running())
	})

	t.Run("same user is idempotent", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.c.Initialize("u-1"))
		h.waitCheckpoint(t, t0)
		require.NoError(t, h.c.Initialize("u-1"))

		time.Sleep(20 * time.Millisecond)
		require.Equal(t, 1, h.store.calls())
		require.True(t, h.c.Running())
		require.Equal(t, "u-1", h.c.User())
	})

	t.Run("different user starts fresh", func(t *testing.T) {
		h := newHarness(t)
		h.store.add(chat("a", t0.Add(-time.Second)))
		require.NoError(t, h.c.Initialize("u-1"))
		h.waitCheckpoint(t, t0)
		require.NotEmpty(t, h.c.Snapshot())

		h.clock.Set(t0.Add(time.Minute))
		h.store.add(chat("b", t0.Add(30*time.Second)))
		require.NoError(t, h.c.Initialize("u-2"))
		h.waitCheckpoint(t, t0.Add(time.Minute))

		// The checkpoint was cleared, so the new user's first cycle primes.
		require.Empty(t, h.rec.created())
		require.Equal(t, "u-2", h.c.User())

		late := &recorder{}
		h.c.OnNotification(late)
		h.store.add(chat("c", t0.Add(2*time.Minute)))
		h.clock.Set(t0.Add(3 * time.Minute))
		h.runCycle(t)

		require.Equal(t, []string{"c"}, late.created())
		require.Empty(t, h.rec.created(), "previous user's listeners are dropped")
	})
}

func TestResetKeepsCheckpoint(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("a", t0.Add(5*time.Second)))
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(10*time.Second))
	require.Equal(t, []string{"a"}, h.rec.created())

	h.c.Reset()
	require.False(t, h.c.Running())
	require.Empty(t, h.c.User())
	require.Empty(t, h.c.Snapshot())
	require.False(t, h.c.CheckNow(context.Background()))

	again := &recorder{}
	h.c.OnNotification(again)
	h.clock.Set(t0.Add(20 * time.Second))
	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0.Add(20*time.Second))

	require.Empty(t, again.created())
	require.Len(t, h.rec.created(), 1)
}

func TestResetDiscardsInFlightCycle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.cp.Save(context.Background(), t0))
	h.store.add(chat("a", t0.Add(5*time.Second)))
	h.store.entered = make(chan struct{})
	h.store.release = make(chan struct{})
	h.clock.Set(t0.Add(10 * time.Second))

	require.NoError(t, h.c.Initialize("u-1"))
	<-h.store.entered

	h.c.Reset()
	late := &recorder{}
	h.c.OnNotification(late)

	h.store.mu.Lock()
	h.store.entered = nil
	h.store.mu.Unlock()
	close(h.store.release)

	time.Sleep(20 * time.Millisecond)
	at, ok := h.checkpointAt(t)
	require.True(t, ok)
	require.True(t, at.Equal(t0))
	require.Empty(t, late.created())
	require.Empty(t, h.c.Snapshot())
}

func TestCheckpointLoadFailurePrimes(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeStore{}
	store.add(chat("a", t0.Add(time.Second)))
	cp := &brokenCheckpoint{Memory: checkpoint.NewMemory()}
	rec := &recorder{}
	c := New(store, cp, nil, zap.New(core), WithInterval(time.Hour), WithClock(func() time.Time { return t0 }))
	c.OnNotification(rec)
	t.Cleanup(c.Reset)

	require.NoError(t, c.Initialize("u-1"))
	require.Eventually(t, func() bool {
		_, ok, _ := cp.Memory.Load(context.Background())
		return ok
	}, time.Second, time.Millisecond)

	require.Empty(t, rec.created())
	require.Equal(t, 1, logs.FilterMessage("checkpoint load failed, treating as absent").Len())
}

type brokenCheckpoint struct {
	*checkpoint.Memory
}

func (b *brokenCheckpoint) Load(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("corrupt checkpoint")
}

func TestMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	h := newHarness(t, WithMetrics(m))
	require.NoError(t, h.c.Initialize("u-1"))
	h.waitCheckpoint(t, t0)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.cycles.WithLabelValues(resultPrimed)) == 1
	}, time.Second, time.Millisecond)

	h.store.add(chat("a", t0.Add(time.Second)))
	h.clock.Set(t0.Add(2 * time.Second))
	h.runCycle(t)

	require.Equal(t, float64(1), testutil.ToFloat64(m.cycles.WithLabelValues(resultDelivered)))
	require.Equal(t, float64(1), testutil.ToFloat64(m.delivered))

	m.Shown()
	require.Equal(t, float64(1), testutil.ToFloat64(m.shown))

	var nilMetrics *Metrics
	nilMetrics.Shown()
	nilMetrics.cycle(resultFailed)
}

func TestSnapshotNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.store.add(chat("old", t0), chat("new", t0.Add(time.Minute)), chat("mid", t0.Add(time.Second)))
	h.c.UnreadNotifications(context.Background())

	var ids []string
	for _, n := range h.c.Snapshot() {
		ids = append(ids, n.ID)
	}
	require.Equal(t, []string{"new", "mid", "old"}, ids)
}
