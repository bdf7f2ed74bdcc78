package model

import (
	"encoding/json"
	"time"

	"notify_poller/internal/domain"
)

type Notification struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Type       domain.Type    `json:"type"`
	Data       domain.Payload `json:"data"`
	RelatedURL string         `json:"related_url,omitempty"`
	IsRead     bool           `json:"is_read"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Title and Message read through to the payload and are empty when the
// notification carries none.
func (n Notification) Title() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.Headline().Title
}

func (n Notification) Message() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.Headline().Message
}

type notificationJSON struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       domain.Type     `json:"type"`
	Data       json.RawMessage `json:"data"`
	RelatedURL string          `json:"related_url,omitempty"`
	IsRead     bool            `json:"is_read"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// UnmarshalJSON resolves the data field into the payload variant named by type.
func (n *Notification) UnmarshalJSON(b []byte) error {
	var raw notificationJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	payload, err := domain.DecodePayload(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*n = Notification{
		ID:         raw.ID,
		UserID:     raw.UserID,
		Type:       raw.Type,
		Data:       payload,
		RelatedURL: raw.RelatedURL,
		IsRead:     raw.IsRead,
		CreatedAt:  raw.CreatedAt,
		UpdatedAt:  raw.UpdatedAt,
	}
	return nil
}
