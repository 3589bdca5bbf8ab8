package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Setting is process-wide configuration persisted across restarts, such as
// the JWT secret used for deployment credentials.
type Setting struct {
	ID        uuid.UUID `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
}

type Settings struct {
	s *Store
}

func (s *Settings) Get(ctx context.Context, key string) (*Setting, error) {
	return getOne[Setting](ctx, s.s.pool, "SELECT * FROM settings WHERE key = $1", key)
}

func (s *Settings) Set(ctx context.Context, key, value string) (*Setting, error) {
	return getOne[Setting](ctx, s.s.pool, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		RETURNING *`, key, value)
}

// GetOrSetDefault reads the setting, inserting the result of defaultFn if it
// does not exist yet. The insert does not overwrite a concurrently written
// value; the winning row is returned either way.
func (s *Settings) GetOrSetDefault(ctx context.Context, key string, defaultFn func() (string, error)) (*Setting, error) {
	setting, err := s.Get(ctx, key)
	if err == nil {
		return setting, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	value, err := defaultFn()
	if err != nil {
		return nil, err
	}
	return getOne[Setting](ctx, s.s.pool, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = settings.value
		RETURNING *`, key, value)
}
