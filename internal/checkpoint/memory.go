package checkpoint

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu  sync.Mutex
	at  time.Time
	set bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at, m.set, nil
}

func (m *Memory) Save(_ context.Context, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at = t
	m.set = true
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.at = time.Time{}
	m.set = false
	return nil
}

func (m *Memory) Close() error { return nil }
