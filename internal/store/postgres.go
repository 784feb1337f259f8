package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/pkg/models"
)

// notifyChannel carries the path of every written document.
const notifyChannel = "dataset_changed"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// PostgresGateway stores each document as a JSONB row keyed by its path.
type PostgresGateway struct {
	pool  *pgxpool.Pool
	appID string
	log   zerolog.Logger
}

// NewPostgresGateway connects, applies migrations and returns the gateway.
func NewPostgresGateway(ctx context.Context, databaseURL, appID string) (*PostgresGateway, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required for the postgres backend")
	}

	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return NewPostgresGatewayWithPool(pool, appID), nil
}

// NewPostgresGatewayWithPool wraps an existing, migrated pool.
func NewPostgresGatewayWithPool(pool *pgxpool.Pool, appID string) *PostgresGateway {
	return &PostgresGateway{
		pool:  pool,
		appID: appID,
		log:   logger.WithComponent("store.postgres"),
	}
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations applies the embedded migrations that have not run yet, one
// transaction per file.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		versions = append(versions, entry.Name())
	}
	sort.Strings(versions)

	for _, version := range versions {
		var exists bool
		if err := pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
			version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", version, err)
		}
		if exists {
			continue
		}

		body, err := migrationFiles.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations(version) VALUES($1)",
			version,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}

	return nil
}

// Read loads the document, or returns the empty dataset if there is no row.
func (g *PostgresGateway) Read(ctx context.Context, userKey string) (models.Dataset, error) {
	const op = "Read"

	if err := validateUserKey(userKey); err != nil {
		return models.Dataset{}, err
	}
	path := DocumentPath(g.appID, userKey)

	var data []byte
	err := g.pool.QueryRow(ctx,
		"SELECT document FROM datasets WHERE path = $1",
		path,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewDataset(), nil
	}
	if err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}

	ds, err := decodeDataset(data)
	if err != nil {
		return models.Dataset{}, NewGatewayError(op, path, ErrPersistenceRead, err)
	}
	return ds, nil
}

// Write upserts the document and notifies listeners in the same transaction,
// so the notification is only delivered if the write commits.
func (g *PostgresGateway) Write(ctx context.Context, userKey string, ds models.Dataset) error {
	const op = "Write"

	if err := validateUserKey(userKey); err != nil {
		return err
	}
	path := DocumentPath(g.appID, userKey)

	data, err := encodeDataset(ds)
	if err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO datasets (path, app_id, user_id, document, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (path) DO UPDATE
		SET document = EXCLUDED.document, updated_at = NOW()
	`, path, g.appID, userKey, data); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, path); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return NewGatewayError(op, path, ErrPersistenceWrite, err)
	}

	g.log.Debug().
		Str("path", path).
		Int("bytes", len(data)).
		Msg("Dataset written")
	return nil
}

// Subscribe takes a dedicated connection out of the pool, LISTENs on the
// change channel and re-reads the document whenever its path is notified.
func (g *PostgresGateway) Subscribe(ctx context.Context, userKey string, onChange func(models.Dataset), onError func(error)) (func(), error) {
	const op = "Subscribe"

	if err := validateUserKey(userKey); err != nil {
		return nil, err
	}
	path := DocumentPath(g.appID, userKey)

	pooled, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, NewGatewayError(op, path, ErrSubscribe, err)
	}
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		_ = conn.Close(context.Background())
		return nil, NewGatewayError(op, path, ErrSubscribe, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() { _ = conn.Close(context.Background()) }()

		deliver := func() bool {
			ds, err := g.Read(subCtx, userKey)
			if err != nil {
				if subCtx.Err() == nil {
					onError(NewGatewayError(op, path, ErrSubscribe, err))
				}
				return false
			}
			onChange(ds)
			return true
		}

		if !deliver() {
			return
		}
		for {
			n, err := conn.WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() == nil {
					onError(NewGatewayError(op, path, ErrSubscribe, err))
				}
				return
			}
			if n.Payload != path {
				continue
			}
			if !deliver() {
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// Close closes the pool.
func (g *PostgresGateway) Close() error {
	g.pool.Close()
	return nil
}
