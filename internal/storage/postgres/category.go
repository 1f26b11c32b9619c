package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// CategoryStore reads the pre-populated category reference table.
type CategoryStore struct {
	db *sqlx.DB
}

func NewCategoryStore(db *sqlx.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) Exists(ctx context.Context, categoryID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE category_id = $1)`, categoryID)
	return exists, err
}
