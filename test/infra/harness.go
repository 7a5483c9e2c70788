package infra

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the Postgres backing a stress run and the migrated pool on it.
type Harness struct {
	pool     *pgxpool.Pool
	dsn      string
	Backend  string
	teardown func(context.Context) error
	closers  []func(context.Context) error
}

// Start resolves a database in order: the explicit dsn, STRESS_TEST_PG_DSN, a
// testcontainers Postgres when docker answers, otherwise embedded Postgres.
// Shared databases get an isolated schema.
func Start(ctx context.Context, dsn string, maxConns int32) (*Harness, error) {
	h := &Harness{}
	isolate := false

	switch {
	case dsn != "":
		h.Backend, isolate = "dsn", true
	case os.Getenv("STRESS_TEST_PG_DSN") != "":
		dsn = os.Getenv("STRESS_TEST_PG_DSN")
		h.Backend, isolate = "env", true
	case DockerAvailable(ctx):
		pgC, containerDSN, err := StartPostgres16(ctx)
		if err != nil {
			return nil, fmt.Errorf("start postgres container: %w", err)
		}
		h.closers = append(h.closers, pgC.Terminate)
		dsn, h.Backend = containerDSN, "container"
	default:
		emb, embeddedDSN, err := StartEmbedded()
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, func(context.Context) error { return emb.Stop() })
		dsn, h.Backend = embeddedDSN, "embedded"
	}
	h.dsn = dsn

	pool, teardown, err := ApplyMigrations(ctx, dsn, maxConns, isolate)
	if err != nil {
		h.Close(ctx)
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	h.pool = pool
	h.teardown = teardown

	return h, nil
}

// Pool exposes the migrated pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources in reverse order of acquisition.
func (h *Harness) Close(ctx context.Context) error {
	var firstErr error
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		firstErr = h.teardown(ctx)
	}
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reset truncates mutable tables to provide a clean slate for the next epoch.
func (h *Harness) Reset(ctx context.Context) error {
	tables := []string{
		"outbox",
		"idempotency",
		"approvals",
		"documents",
		"contracts",
		"users",
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tbl := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+tbl+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", tbl, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("reset commit: %w", err)
	}

	return nil
}
