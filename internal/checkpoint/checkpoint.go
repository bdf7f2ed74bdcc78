package checkpoint

import (
	"context"
	"fmt"
	"time"
)

// Key is the fixed slot the last successful poll time is stored under.
const Key = "notifications:last_check"

// Store is a durable single-value slot holding the last successful poll time.
type Store interface {
	// Load returns the stored time and whether one was present.
	Load(ctx context.Context) (time.Time, bool, error)
	Save(ctx context.Context, t time.Time) error
	Clear(ctx context.Context) error
	Close() error
}

func encode(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decode(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse checkpoint %q: %w", v, err)
	}
	return t, nil
}
