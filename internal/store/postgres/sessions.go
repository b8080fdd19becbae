package postgres

import (
	"context"
	"errors"
	"fmt"

	"favorsweb/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionsStore keeps client session values in Postgres, partitioned by
// namespace so several profiles can share one database.
type SessionsStore struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewSessionsStore(pool *pgxpool.Pool, namespace string) *SessionsStore {
	if namespace == "" {
		namespace = "default"
	}
	return &SessionsStore{pool: pool, namespace: namespace}
}

func (s *SessionsStore) Load(ctx context.Context, key string) (string, error) {
	const q = `
		SELECT value
		FROM client_sessions
		WHERE namespace = $1 AND key = $2
	`

	var value string
	err := s.pool.QueryRow(ctx, q, s.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("load session value: %w", err)
	}
	return value, nil
}

func (s *SessionsStore) Save(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO client_sessions (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, q, s.namespace, key, value); err != nil {
		return fmt.Errorf("save session value: %w", err)
	}
	return nil
}

func (s *SessionsStore) Delete(ctx context.Context, key string) error {
	const q = `
		DELETE FROM client_sessions
		WHERE namespace = $1 AND key = $2
	`

	if _, err := s.pool.Exec(ctx, q, s.namespace, key); err != nil {
		return fmt.Errorf("delete session value: %w", err)
	}
	return nil
}
