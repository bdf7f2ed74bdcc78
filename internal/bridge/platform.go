package bridge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

var ErrPromptUnavailable = errors.New("permission prompt unavailable")

type unsupported struct{}

func (unsupported) Supported() bool        { return false }
func (unsupported) Permission() Permission { return Unsupported }
func (unsupported) RequestPermission(context.Context) (Permission, error) {
	return Unsupported, nil
}
func (unsupported) Show(context.Context, Toast) error { return nil }

// NewUnsupported returns a platform with no notification capability.
func NewUnsupported() Platform { return unsupported{} }

// LogPlatform "displays" toasts by writing them to the structured logger.
// Its permission is fixed at construction; an undetermined permission is
// resolved by the answer function, which defaults to granting.
type LogPlatform struct {
	log    *zap.Logger
	answer func() Permission

	mu   sync.Mutex
	perm Permission
}

func NewLogPlatform(logger *zap.Logger, perm Permission, answer func() Permission) *LogPlatform {
	if answer == nil {
		answer = func() Permission { return Granted }
	}
	return &LogPlatform{log: logger, perm: perm, answer: answer}
}

func (p *LogPlatform) Supported() bool { return true }

func (p *LogPlatform) Permission() Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perm
}

func (p *LogPlatform) RequestPermission(context.Context) (Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perm = p.answer()
	return p.perm, nil
}

func (p *LogPlatform) Show(_ context.Context, t Toast) error {
	p.log.Info("notification",
		zap.String("tag", t.Tag),
		zap.String("title", t.Title),
		zap.String("body", t.Body),
		zap.String("url", t.URL),
	)
	return nil
}

// ExecPlatform shows toasts through a desktop notifier command such as
// notify-send. It is unsupported when the command cannot be found. There is
// no interactive prompt, so an undetermined permission resolves to denied.
type ExecPlatform struct {
	command string
	path    string
	perm    Permission
	run     func(ctx context.Context, name string, args ...string) error
}

func NewExecPlatform(command string, perm Permission) *ExecPlatform {
	path, err := exec.LookPath(command)
	if err != nil {
		path = ""
	}
	return &ExecPlatform{
		command: command,
		path:    path,
		perm:    perm,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

func (p *ExecPlatform) Supported() bool { return p.path != "" }

func (p *ExecPlatform) Permission() Permission {
	if !p.Supported() {
		return Unsupported
	}
	return p.perm
}

func (p *ExecPlatform) RequestPermission(context.Context) (Permission, error) {
	p.perm = Denied
	return Denied, ErrPromptUnavailable
}

func (p *ExecPlatform) Show(ctx context.Context, t Toast) error {
	args := []string{"--app-name=notify-watcher", "--hint=string:x-canonical-private-synchronous:" + t.Tag, t.Title, t.Body}
	if err := p.run(ctx, p.path, args...); err != nil {
		return fmt.Errorf("%s: %w", p.command, err)
	}
	return nil
}
