package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"notify_poller/internal/domain"
	"notify_poller/internal/model"
	"notify_poller/internal/repository"
)

type notificationRow struct {
	ID         string         `db:"id"`
	UserID     string         `db:"user_id"`
	Type       string         `db:"type"`
	Data       []byte         `db:"data"`
	RelatedURL sql.NullString `db:"related_url"`
	IsRead     bool           `db:"is_read"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (r notificationRow) toModel() (model.Notification, error) {
	payload, err := domain.DecodePayload(domain.Type(r.Type), r.Data)
	if err != nil {
		return model.Notification{}, fmt.Errorf("decode notification %s: %w", r.ID, err)
	}
	return model.Notification{
		ID:         r.ID,
		UserID:     r.UserID,
		Type:       domain.Type(r.Type),
		Data:       payload,
		RelatedURL: r.RelatedURL.String,
		IsRead:     r.IsRead,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func (s *Store) CreateNotification(ctx context.Context, notification model.Notification) (model.Notification, error) {
	data, err := json.Marshal(notification.Data)
	if err != nil {
		return model.Notification{}, fmt.Errorf("marshal notification data: %w", err)
	}
	notification.ID = uuid.NewString()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	notification.UpdatedAt = notification.CreatedAt
	notification.IsRead = false

	statement, args, err := s.builder.
		Insert(notificationsTable).
		Columns(notificationColumns...).
		Values(
			notification.ID,
			notification.UserID,
			string(notification.Type),
			data,
			sql.NullString{String: notification.RelatedURL, Valid: notification.RelatedURL != ""},
			false,
			notification.CreatedAt,
			notification.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return model.Notification{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, statement, args...); err != nil {
		s.log.Error("sql create notification failed",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err),
		)
		return model.Notification{}, err
	}
	return notification, nil
}

func (s *Store) ListNotifications(ctx context.Context, query repository.ListQuery) ([]model.Notification, error) {
	builder := s.builder.
		Select(notificationColumns...).
		From(notificationsTable).
		Where(sq.Eq{"user_id": query.UserID}).
		OrderBy("created_at DESC", "id DESC")
	if query.UnreadOnly {
		builder = builder.Where(sq.Eq{"is_read": false})
	}
	if query.Limit > 0 {
		builder = builder.Limit(uint64(query.Limit)).Offset(uint64(query.Offset))
	}

	statement, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, statement, args...); err != nil {
		s.log.Error("sql list notifications failed",
			zap.String("user_id", query.UserID),
			zap.Bool("unread_only", query.UnreadOnly),
			zap.Int("limit", query.Limit),
			zap.Error(err),
		)
		return nil, err
	}

	result := make([]model.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toModel()
		if err != nil {
			s.log.Warn("skipping undecodable notification row", zap.String("id", row.ID), zap.Error(err))
			continue
		}
		result = append(result, n)
	}
	return result, nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	statement, args, err := s.builder.
		Select("COUNT(*)").
		From(notificationsTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}

	var count int
	if err := s.db.QueryRowxContext(ctx, statement, args...).Scan(&count); err != nil {
		s.log.Error("sql count unread failed", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	statement, args, err := s.builder.
		Update(notificationsTable).
		Set("is_read", true).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		s.log.Error("sql mark read failed", zap.String("user_id", userID), zap.String("id", id), zap.Error(err))
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	// Nothing changed: either already read or missing.
	return s.exists(ctx, userID, id)
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	statement, args, err := s.builder.
		Update(notificationsTable).
		Set("is_read", true).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		s.log.Error("sql mark all read failed", zap.String("user_id", userID), zap.Error(err))
		return 0, err
	}
	return result.RowsAffected()
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	statement, args, err := s.builder.
		Delete(notificationsTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := s.db.ExecContext(ctx, statement, args...)
	if err != nil {
		s.log.Error("sql delete notification failed", zap.String("user_id", userID), zap.String("id", id), zap.Error(err))
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) exists(ctx context.Context, userID, id string) error {
	statement, args, err := s.builder.
		Select("COUNT(*)").
		From(notificationsTable).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build count: %w", err)
	}
	var count int
	if err := s.db.QueryRowxContext(ctx, statement, args...).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return repository.ErrNotFound
	}
	return nil
}
