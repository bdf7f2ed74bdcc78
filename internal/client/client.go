package client

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"notify_poller/internal/checkpoint"
	"notify_poller/internal/listener"
	"notify_poller/internal/model"
	"notify_poller/internal/poller"
	"notify_poller/internal/remote"
)

const DefaultFetchTimeout = 15 * time.Second

var ErrEmptyUser = errors.New("user id is required")

// Store is the remote notification store as seen by the client.
type Store interface {
	ListUnread(ctx context.Context) ([]model.Notification, error)
	ListPage(ctx context.Context, page, limit int) ([]model.Notification, bool, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Notifier surfaces a new notification outside the process. It must not
// block for long and never reports failure.
type Notifier interface {
	Attempt(ctx context.Context, n model.Notification)
}

type Page struct {
	Items   []model.Notification `json:"items"`
	HasMore bool                 `json:"hasMore"`
}

type Option func(*Client)

func WithInterval(d time.Duration) Option {
	return func(c *Client) { c.interval = d }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) { c.fetchTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is the single entry point for notification consumers. It owns the
// poll scheduler, the listener registry and the central notification state
// for one user at a time.
type Client struct {
	store       Store
	checkpoints checkpoint.Store
	notifier    Notifier
	registry    *listener.Registry
	log         *zap.Logger

	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *Metrics

	// lifecycle serializes Initialize and Reset.
	lifecycle sync.Mutex
	// cpMu orders checkpoint writes from cycles against clears on user switch.
	cpMu sync.Mutex

	mu         sync.Mutex
	userID     string
	owner      string
	scheduler  *poller.Scheduler
	generation uint64
	allReadSeq uint64
	items      map[string]model.Notification
	read       map[string]struct{}
	deleted    map[string]struct{}
	delivered  map[string]struct{}
}

func New(store Store, checkpoints checkpoint.Store, notifier Notifier, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		store:        store,
		checkpoints:  checkpoints,
		notifier:     notifier,
		registry:     listener.NewRegistry(logger),
		log:          logger,
		interval:     poller.DefaultInterval,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.checkpoints == nil {
		c.checkpoints = checkpoint.NewMemory()
	}
	c.resetStateLocked()
	return c
}

// Initialize starts polling for userID. Calling it again for the same user
// is a no-op. A different user tears down everything tied to the previous
// one, including the checkpoint, before starting fresh.
func (c *Client) Initialize(userID string) error {
	if userID == "" {
		return ErrEmptyUser
	}

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.userID == userID && c.scheduler != nil {
		c.mu.Unlock()
		return nil
	}
	switched := c.owner != "" && c.owner != userID
	old := c.scheduler
	c.generation++
	gen := c.generation
	c.userID = userID
	c.owner = userID
	c.resetStateLocked()
	c.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	if switched {
		c.registry.Clear()
		c.cpMu.Lock()
		if err := c.checkpoints.Clear(context.Background()); err != nil {
			c.log.Error("checkpoint clear failed", zap.String("user_id", userID), zap.Error(err))
		}
		c.cpMu.Unlock()
		c.log.Info("notification client switched user", zap.String("user_id", userID))
	}

	sched := poller.New(c.interval, func(ctx context.Context) {
		c.checkNewNotifications(ctx, gen)
	}, c.log)
	sched.OnSkip(c.metrics.skip)

	c.mu.Lock()
	c.scheduler = sched
	c.mu.Unlock()

	sched.Start()
	c.log.Info("notification polling started", zap.String("user_id", userID), zap.Duration("interval", c.interval))
	return nil
}

// Reset stops polling and forgets the user, the listeners and all local
// state. The checkpoint is kept, so re-initializing the same user does not
// replay old notifications.
func (c *Client) Reset() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	sched := c.scheduler
	c.scheduler = nil
	c.generation++
	c.userID = ""
	c.resetStateLocked()
	c.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	c.registry.Clear()
	c.log.Info("notification client reset")
}

// CheckNow runs one poll cycle on the calling goroutine. It reports false
// when the client is not initialized or a cycle is already in flight.
func (c *Client) CheckNow(ctx context.Context) bool {
	c.mu.Lock()
	sched := c.scheduler
	c.mu.Unlock()
	if sched == nil {
		return false
	}
	return sched.TryRun(ctx)
}

func (c *Client) OnNotification(l listener.Listener) func() {
	return c.registry.Add(l)
}

func (c *Client) User() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) Running() bool {
	c.mu.Lock()
	sched := c.scheduler
	c.mu.Unlock()
	return sched != nil && sched.State() == poller.Running
}

// Snapshot returns every notification the client currently knows about,
// newest first.
func (c *Client) Snapshot() []model.Notification {
	c.mu.Lock()
	out := make([]model.Notification, 0, len(c.items))
	for _, n := range c.items {
		out = append(out, n)
	}
	c.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Notification) int {
		if d := b.CreatedAt.Compare(a.CreatedAt); d != 0 {
			return d
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (c *Client) UnreadNotifications(ctx context.Context) []model.Notification {
	ctx, snap := c.begin(ctx)
	fetched, err := c.store.ListUnread(ctx)
	if err != nil {
		c.log.Error("fetch unread notifications failed", zap.String("user_id", snap.userID), zap.Error(err))
		return []model.Notification{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.Notification{}
	if !c.currentLocked(snap) {
		return out
	}
	for _, n := range fetched {
		view, ok := c.mergeLocked(n, snap)
		if ok && !view.IsRead {
			out = append(out, view)
		}
	}
	return out
}

func (c *Client) AllNotifications(ctx context.Context, page, limit int) Page {
	empty := Page{Items: []model.Notification{}}
	if page < 1 || limit <= 0 {
		c.log.Warn("invalid notification page request", zap.Int("page", page), zap.Int("limit", limit))
		return empty
	}

	ctx, snap := c.begin(ctx)
	fetched, hasMore, err := c.store.ListPage(ctx, page, limit)
	if err != nil {
		c.log.Error("fetch notification page failed",
			zap.String("user_id", snap.userID),
			zap.Int("page", page),
			zap.Int("limit", limit),
			zap.Error(err),
		)
		return empty
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(snap) {
		return empty
	}
	items := make([]model.Notification, 0, min(len(fetched), limit))
	for _, n := range fetched {
		if len(items) == limit {
			hasMore = true
			break
		}
		if view, ok := c.mergeLocked(n, snap); ok {
			items = append(items, view)
		}
	}
	return Page{Items: items, HasMore: hasMore}
}

func (c *Client) UnreadCount(ctx context.Context) int {
	ctx, snap := c.begin(ctx)
	count, err := c.store.UnreadCount(ctx)
	if err != nil {
		c.log.Error("fetch unread count failed", zap.String("user_id", snap.userID), zap.Error(err))
		return 0
	}
	return max(count, 0)
}

// MarkAsRead marks id read locally, notifies listeners and then tells the
// store. A store failure is logged and the local state is kept.
func (c *Client) MarkAsRead(ctx context.Context, id string) {
	c.mu.Lock()
	_, already := c.read[id]
	_, gone := c.deleted[id]
	c.read[id] = struct{}{}
	n, known := c.items[id]
	if known {
		n.IsRead = true
		c.items[id] = n
	}
	c.mu.Unlock()

	if !already && !gone {
		c.registry.Broadcast(listener.Event{Kind: listener.EventRead, ID: id, Notification: n})
	}

	ctx, snap := c.begin(ctx)
	if err := c.store.MarkRead(ctx, id); err != nil {
		c.log.Error("mark notification read failed", zap.String("user_id", snap.userID), zap.String("notification_id", id), zap.Error(err))
	}
}

func (c *Client) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	for id, n := range c.items {
		n.IsRead = true
		c.items[id] = n
		c.read[id] = struct{}{}
	}
	c.allReadSeq++
	c.mu.Unlock()

	c.registry.Broadcast(listener.Event{Kind: listener.EventAllRead})

	ctx, snap := c.begin(ctx)
	if err := c.store.MarkAllRead(ctx); err != nil {
		c.log.Error("mark all notifications read failed", zap.String("user_id", snap.userID), zap.Error(err))
	}
}

// DeleteNotification drops id from local state for the lifetime of the
// session, notifies listeners and then tells the store.
func (c *Client) DeleteNotification(ctx context.Context, id string) {
	c.mu.Lock()
	_, gone := c.deleted[id]
	c.deleted[id] = struct{}{}
	delete(c.items, id)
	c.mu.Unlock()

	if !gone {
		c.registry.Broadcast(listener.Event{Kind: listener.EventDeleted, ID: id})
	}

	ctx, snap := c.begin(ctx)
	if err := c.store.Delete(ctx, id); err != nil {
		c.log.Error("delete notification failed", zap.String("user_id", snap.userID), zap.String("notification_id", id), zap.Error(err))
	}
}

// snapshot captures what a store call started against, so its result can
// be dropped or patched when local state moved on meanwhile.
type snapshot struct {
	userID     string
	generation uint64
	allReadSeq uint64
}

func (c *Client) begin(ctx context.Context) (context.Context, snapshot) {
	c.mu.Lock()
	snap := snapshot{userID: c.userID, generation: c.generation, allReadSeq: c.allReadSeq}
	c.mu.Unlock()
	return remote.WithUserID(ctx, snap.userID), snap
}

func (c *Client) currentLocked(snap snapshot) bool {
	return c.generation == snap.generation
}

// mergeLocked folds a fetched notification into the central state and
// returns the local view of it. Deleted ids are not visible. Once an id is
// read locally it stays read whatever the store reports.
func (c *Client) mergeLocked(n model.Notification, snap snapshot) (model.Notification, bool) {
	if _, gone := c.deleted[n.ID]; gone {
		return model.Notification{}, false
	}
	if prev, ok := c.items[n.ID]; ok && prev.IsRead {
		n.IsRead = true
	}
	if _, ok := c.read[n.ID]; ok {
		n.IsRead = true
	}
	// Fetched before a mark-all: everything in it is read by now.
	if snap.allReadSeq != c.allReadSeq {
		n.IsRead = true
	}
	if n.IsRead {
		c.read[n.ID] = struct{}{}
	}
	c.items[n.ID] = n
	return n, true
}

func (c *Client) resetStateLocked() {
	c.items = make(map[string]model.Notification)
	c.read = make(map[string]struct{})
	c.deleted = make(map[string]struct{})
	c.delivered = make(map[string]struct{})
}
