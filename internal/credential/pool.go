// Package credential rotates through a fixed set of API keys for one ingestion run.
package credential

import (
	"context"
	"fmt"
	"strings"

	"video_ingestor/internal/domain"
)

// Store is the persistent source of API keys.
type Store interface {
	ListKeys(ctx context.Context) ([]string, error)
}

// Pool hands out keys in order. A key that has been handed out is never
// returned again; once the last key is used the pool stays exhausted.
// A Pool is meant for a single consumer and a single run.
type Pool struct {
	store Store
	keys  []string
	pos   int
}

func NewPool(store Store) *Pool {
	return &Pool{store: store}
}

// Load reads every key from the store and resets the position.
func (p *Pool) Load(ctx context.Context) error {
	keys, err := p.store.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("load api keys: %w", err)
	}

	usable := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			usable = append(usable, k)
		}
	}
	if len(usable) == 0 {
		return domain.ErrNoCredentials
	}

	p.keys = usable
	p.pos = 0
	return nil
}

// Next returns the key at the current position and advances past it.
func (p *Pool) Next() (string, error) {
	if len(p.keys) == 0 {
		return "", domain.ErrNoCredentials
	}
	if p.pos >= len(p.keys) {
		return "", domain.ErrCredentialsExhausted
	}

	key := p.keys[p.pos]
	p.pos++
	return key, nil
}

// Len returns the number of loaded keys.
func (p *Pool) Len() int {
	return len(p.keys)
}

// Used returns how many keys have been handed out.
func (p *Pool) Used() int {
	return p.pos
}

// Mask renders a key for logs, keeping only the last four characters.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
