package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	NotificationTypeChatMessage    Type = "chat_message"
	NotificationTypeOfferAccepted  Type = "offer_accepted"
	NotificationTypeOfferReceived  Type = "offer_received"
	NotificationTypeTradeCompleted Type = "trade_completed"
)

var (
	ErrInvalidNotificationType = errors.New("invalid notification type")
	ErrInvalidPayload          = errors.New("invalid notification payload")
)

func IsValidNotificationType(value string) bool {
	_, ok := payloadFactories[Type(value)]
	return ok
}

// Payload is the type-specific body of a notification. Each notification
// type has exactly one concrete payload variant.
type Payload interface {
	Kind() Type
	Headline() Common
}

// Common holds the fields every payload variant carries.
type Common struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	SenderName string `json:"sender_name,omitempty"`
}

func (c Common) Headline() Common { return c }

type ChatMessage struct {
	Common
	ChatID  string `json:"chat_id,omitempty"`
	TradeID string `json:"trade_id,omitempty"`
}

func (ChatMessage) Kind() Type { return NotificationTypeChatMessage }

type OfferAccepted struct {
	Common
	OfferID string `json:"offer_id,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
}

func (OfferAccepted) Kind() Type { return NotificationTypeOfferAccepted }

type OfferReceived struct {
	Common
	OfferID string `json:"offer_id,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
}

func (OfferReceived) Kind() Type { return NotificationTypeOfferReceived }

type TradeCompleted struct {
	Common
	TradeID string `json:"trade_id,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
}

func (TradeCompleted) Kind() Type { return NotificationTypeTradeCompleted }

var payloadFactories = map[Type]func() Payload{
	NotificationTypeChatMessage:    func() Payload { return &ChatMessage{} },
	NotificationTypeOfferAccepted:  func() Payload { return &OfferAccepted{} },
	NotificationTypeOfferReceived:  func() Payload { return &OfferReceived{} },
	NotificationTypeTradeCompleted: func() Payload { return &TradeCompleted{} },
}

// DecodePayload decodes raw JSON into the payload variant registered for t.
// The returned value is the variant itself, not a pointer to it.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	factory, ok := payloadFactories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNotificationType, t)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	p := factory()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	p = deref(p)
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ValidatePayload reports whether p carries the fields every notification needs.
func ValidatePayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	h := p.Headline()
	if h.Title == "" || h.Message == "" {
		return fmt.Errorf("%w: title and message are required", ErrInvalidPayload)
	}
	return nil
}

func deref(p Payload) Payload {
	switch v := p.(type) {
	case *ChatMessage:
		return *v
	case *OfferAccepted:
		return *v
	case *OfferReceived:
		return *v
	case *TradeCompleted:
		return *v
	default:
		return p
	}
}
