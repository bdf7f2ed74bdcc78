package repository

import (
	"context"
	"errors"

	"notify_poller/internal/model"
)

var ErrNotFound = errors.New("notification not found")

// ListQuery selects a user's notifications, newest first. A zero Limit
// means no limit.
type ListQuery struct {
	UserID     string
	UnreadOnly bool
	Offset     int
	Limit      int
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification model.Notification) (model.Notification, error)
	ListNotifications(ctx context.Context, query ListQuery) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
}
