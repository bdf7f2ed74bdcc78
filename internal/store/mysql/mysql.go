package mysql

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const notificationsTable = "notifications"

var notificationColumns = []string{
	"id", "user_id", "type", "data", "related_url", "is_read", "created_at", "updated_at",
}

type Store struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	log     *zap.Logger
}

func New(db *sqlx.DB, logger *zap.Logger) *Store {
	return &Store{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		log:     logger,
	}
}
