package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"notify_poller/internal/domain"
	"notify_poller/internal/model"
	"notify_poller/internal/repository"
)

var ErrMissingUser = errors.New("user id is required")

type Service struct {
	store repository.NotificationRepository
	log   *zap.Logger
}

func NewService(store repository.NotificationRepository, logger *zap.Logger) *Service {
	return &Service{store: store, log: logger}
}

func (s *Service) Create(ctx context.Context, notification model.Notification) (model.Notification, error) {
	if notification.UserID == "" {
		return model.Notification{}, ErrMissingUser
	}
	if !domain.IsValidNotificationType(string(notification.Type)) {
		return model.Notification{}, domain.ErrInvalidNotificationType
	}
	if err := domain.ValidatePayload(notification.Data); err != nil {
		return model.Notification{}, err
	}
	if notification.Data.Kind() != notification.Type {
		return model.Notification{}, fmt.Errorf("%w: %s payload for %s notification", domain.ErrInvalidPayload, notification.Data.Kind(), notification.Type)
	}

	created, err := s.store.CreateNotification(ctx, notification)
	if err != nil {
		s.log.Error("store create notification failed",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.String("title", notification.Title()),
			zap.Error(err),
		)
		return model.Notification{}, err
	}
	s.log.Info("notification created",
		zap.String("id", created.ID),
		zap.String("user_id", created.UserID),
		zap.String("type", string(created.Type)),
	)
	return created, nil
}

func (s *Service) ListUnread(ctx context.Context, userID string) ([]model.Notification, error) {
	items, err := s.store.ListNotifications(ctx, repository.ListQuery{UserID: userID, UnreadOnly: true})
	if err != nil {
		s.log.Error("store list unread failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return items, nil
}

// ListPage returns one page of a user's notifications, newest first, and
// whether a further page exists.
func (s *Service) ListPage(ctx context.Context, userID string, page, limit int) ([]model.Notification, bool, error) {
	items, err := s.store.ListNotifications(ctx, repository.ListQuery{
		UserID: userID,
		Offset: (page - 1) * limit,
		Limit:  limit + 1,
	})
	if err != nil {
		s.log.Error("store list page failed", zap.String("user_id", userID), zap.Int("page", page), zap.Int("limit", limit), zap.Error(err))
		return nil, false, err
	}
	if len(items) > limit {
		return items[:limit], true, nil
	}
	return items, false, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		s.log.Error("store count unread failed", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.store.MarkRead(ctx, userID, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("store mark read failed", zap.String("user_id", userID), zap.String("id", id), zap.Error(err))
		}
		return err
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		s.log.Error("store mark all read failed", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteNotification(ctx, userID, id); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("store delete notification failed", zap.String("user_id", userID), zap.String("id", id), zap.Error(err))
		}
		return err
	}
	return nil
}
