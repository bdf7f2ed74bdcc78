package queue

import (
	"context"
	"encoding/json"
)

type Consumer interface {
	Start(ctx context.Context) error
}

type Publisher interface {
	Publish(ctx context.Context, payload []byte, routingKey string) error
}

// Event is the domain event body that asks the store to create a
// notification. Data is the type-specific payload.
type Event struct {
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	Data       any    `json:"data"`
	RelatedURL string `json:"related_url,omitempty"`
}

// IncomingEvent is Event as received, with Data left undecoded.
type IncomingEvent struct {
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	RelatedURL string          `json:"related_url,omitempty"`
}
