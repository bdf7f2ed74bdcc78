package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"notify_poller/internal/model"
	"notify_poller/internal/repository"
)

func (s *Store) CreateNotification(_ context.Context, notification model.Notification) (model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notification.ID = uuid.NewString()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	notification.UpdatedAt = notification.CreatedAt
	notification.IsRead = false
	s.records = append(s.records, notification)
	return notification, nil
}

func (s *Store) ListNotifications(_ context.Context, query repository.ListQuery) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []model.Notification{}
	skipped := 0
	for i := len(s.records) - 1; i >= 0; i-- {
		record := s.records[i]
		if record.UserID != query.UserID || (query.UnreadOnly && record.IsRead) {
			continue
		}
		if skipped < query.Offset {
			skipped++
			continue
		}
		result = append(result, record)
		if query.Limit > 0 && len(result) >= query.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, record := range s.records {
		if record.UserID == userID && !record.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(userID, id)
	if i < 0 {
		return repository.ErrNotFound
	}
	if !s.records[i].IsRead {
		s.records[i].IsRead = true
		s.records[i].UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	var updated int64
	for i := range s.records {
		if s.records[i].UserID == userID && !s.records[i].IsRead {
			s.records[i].IsRead = true
			s.records[i].UpdatedAt = now
			updated++
		}
	}
	return updated, nil
}

func (s *Store) DeleteNotification(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(userID, id)
	if i < 0 {
		return repository.ErrNotFound
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	return nil
}

func (s *Store) indexLocked(userID, id string) int {
	for i, record := range s.records {
		if record.ID == id && record.UserID == userID {
			return i
		}
	}
	return -1
}
