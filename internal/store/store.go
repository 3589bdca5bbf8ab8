// Package store is the Postgres backing for all engine entities. Every
// mutating operation runs in a single transaction; row changes are emitted on
// the platz_db_events notification channel by database triggers installed
// with the schema.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// NotificationChannel is the Postgres channel row-change events are emitted
// on. See the notify_row_change trigger in the migrations.
const NotificationChannel = "platz_db_events"

type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database and applies pending migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse database URL")
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create connection pool")
	}
	s := &Store{pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pool for components that need a dedicated
// connection, such as the event bus listener.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrapDBError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return wrapDBError(tx.Commit(ctx))
}

func (s *Store) Envs() *Envs                       { return &Envs{s} }
func (s *Store) Clusters() *Clusters               { return &Clusters{s} }
func (s *Store) Kinds() *Kinds                     { return &Kinds{s} }
func (s *Store) Registries() *Registries           { return &Registries{s} }
func (s *Store) Charts() *Charts                   { return &Charts{s} }
func (s *Store) Deployments() *Deployments         { return &Deployments{s} }
func (s *Store) Tasks() *Tasks                     { return &Tasks{s} }
func (s *Store) Secrets() *Secrets                 { return &Secrets{s} }
func (s *Store) ResourceTypes() *ResourceTypes     { return &ResourceTypes{s} }
func (s *Store) Resources() *Resources             { return &Resources{s} }
func (s *Store) K8sResources() *K8sResources       { return &K8sResources{s} }
func (s *Store) Settings() *Settings               { return &Settings{s} }
func (s *Store) EnvPermissions() *EnvPermissions   { return &EnvPermissions{s} }
func (s *Store) KindPermissions() *KindPermissions { return &KindPermissions{s} }
