package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"notify_poller/internal/model"
)

type Permission int

const (
	Unsupported Permission = iota
	Undetermined
	Granted
	Denied
)

func (p Permission) String() string {
	switch p {
	case Undetermined:
		return "undetermined"
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unsupported"
	}
}

// ParsePermission maps a configured permission name to a Permission.
// "prompt" is the configured spelling of Undetermined.
func ParsePermission(v string) Permission {
	switch v {
	case "granted":
		return Granted
	case "denied":
		return Denied
	case "prompt", "undetermined":
		return Undetermined
	default:
		return Unsupported
	}
}

// Toast is what the platform displays. Tag lets the platform collapse
// repeated displays of the same notification.
type Toast struct {
	Tag   string
	Title string
	Body  string
	URL   string
}

// Platform is an OS-level notification surface.
type Platform interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, t Toast) error
}

// Bridge gates platform display on permission and quota. It never returns
// an error to its caller.
type Bridge struct {
	platform Platform
	limiter  *rate.Limiter
	log      *zap.Logger

	mu        sync.Mutex
	requested bool
	denied    bool
	shown     func()
}

// New builds a bridge. A nil limiter means no quota.
func New(platform Platform, limiter *rate.Limiter, logger *zap.Logger) *Bridge {
	if platform == nil {
		platform = unsupported{}
	}
	return &Bridge{platform: platform, limiter: limiter, log: logger}
}

// OnShown registers a hook called after every successful display.
func (b *Bridge) OnShown(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shown = fn
}

func (b *Bridge) Attempt(ctx context.Context, n model.Notification) {
	defer func() {
		if recovered := recover(); recovered != nil {
			b.log.Warn("platform notification panicked",
				zap.Any("error", recovered),
				zap.String("notification_id", n.ID),
			)
		}
	}()

	if !b.platform.Supported() {
		return
	}

	perm, ok := b.resolvePermission(ctx)
	if !ok || perm != Granted {
		return
	}

	if b.limiter != nil && !b.limiter.Allow() {
		b.log.Warn("platform notification dropped, quota exceeded", zap.String("notification_id", n.ID))
		return
	}

	toast := Toast{Tag: n.ID, Title: n.Title(), Body: n.Message(), URL: n.RelatedURL}
	if err := b.platform.Show(ctx, toast); err != nil {
		b.log.Warn("platform notification failed", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}

	b.mu.Lock()
	hook := b.shown
	b.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// resolvePermission returns the permission to act on for this attempt.
// It asks the platform at most once while undetermined and never again
// after a denial has been observed.
func (b *Bridge) resolvePermission(ctx context.Context) (Permission, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.denied {
		return Denied, false
	}

	perm := b.platform.Permission()
	switch perm {
	case Granted:
		// A later revocation back to undetermined may prompt again.
		b.requested = false
		return Granted, true
	case Denied:
		b.denied = true
		return Denied, false
	case Undetermined:
	default:
		return perm, false
	}

	if b.requested {
		return Undetermined, false
	}
	b.requested = true

	got, err := b.platform.RequestPermission(ctx)
	if err != nil {
		b.log.Warn("platform permission request failed", zap.Error(err))
		return Undetermined, false
	}
	b.log.Info("platform permission resolved", zap.String("permission", got.String()))
	if got == Denied {
		b.denied = true
	}
	return got, got == Granted
}
