// Package pgsql is a Registry stored in a PostgreSQL "users" table.
//
// Uniqueness is enforced by the table's constraints: did is the primary key
// and name is UNIQUE. Unique violations are mapped to the registry sentinels.
package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"xdao.co/didauth/registry"
)

const (
	uniqueViolation = "23505"

	constraintDID  = "users_pkey"
	constraintName = "users_name_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	did        TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

type Registry struct {
	Pool *pgxpool.Pool
}

// Connect opens a pool for connString and pings it.
func Connect(ctx context.Context, connString string) (*Registry, error) {
	connString = strings.TrimSpace(connString)
	if connString == "" {
		return nil, fmt.Errorf("pgsql: database URL is required")
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("pgsql: unable to parse connection string: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("pgsql: unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgsql: failed to ping database: %w", err)
	}
	return &Registry{Pool: pool}, nil
}

// Migrate creates the users table if it does not exist.
func (r *Registry) Migrate(ctx context.Context) error {
	_, err := r.Pool.Exec(ctx, schema)
	return err
}

func (r *Registry) Close() {
	if r.Pool != nil {
		r.Pool.Close()
	}
}

func (r *Registry) Exists(ctx context.Context, nameOrDID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE name = $1 OR did = $1)`
	err := r.Pool.QueryRow(ctx, query, nameOrDID).Scan(&exists)
	return exists, err
}

func (r *Registry) Insert(ctx context.Context, did, name string) error {
	if err := registry.Validate(did, name); err != nil {
		return err
	}
	_, err := r.Pool.Exec(ctx, `INSERT INTO users (did, name) VALUES ($1, $2)`, did, name)
	return mapInsertErr(err)
}

func (r *Registry) FindByDID(ctx context.Context, did string) (registry.User, bool, error) {
	var u registry.User
	err := r.Pool.QueryRow(ctx, `SELECT did, name FROM users WHERE did = $1`, did).Scan(&u.DID, &u.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return registry.User{}, false, nil
	}
	if err != nil {
		return registry.User{}, false, err
	}
	return u, true, nil
}

func mapInsertErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case constraintName:
		return fmt.Errorf("%w: %s", registry.ErrDuplicateName, pgErr.Detail)
	default:
		return fmt.Errorf("%w: %s", registry.ErrDuplicateDID, pgErr.Detail)
	}
}
