package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type APIKeyStore struct {
	db *sqlx.DB
}

func NewAPIKeyStore(db *sqlx.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

// ListKeys returns every stored API key in insertion order.
func (s *APIKeyStore) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.SelectContext(ctx, &keys, `SELECT key FROM api_keys ORDER BY id`)
	return keys, err
}
