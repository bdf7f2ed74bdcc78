package dto

import (
	"encoding/json"

	"notify_poller/internal/model"
)

type CreateNotificationRequest struct {
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	RelatedURL string          `json:"related_url"`
}

type Envelope struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type UnreadListResponse struct {
	Notifications []model.Notification `json:"notifications"`
}

type PageResponse struct {
	Notifications []model.Notification `json:"notifications"`
	HasMore       bool                 `json:"hasMore"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
