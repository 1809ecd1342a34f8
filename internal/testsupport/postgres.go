//go:build integration

// Package testsupport starts disposable infrastructure for integration tests.
package testsupport

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/allerhed/rythm/internal/persistence/migrations"
)

const (
	appRole     = "rythm_app"
	appPassword = "rythm_app"
)

// Postgres is a migrated database reachable through two pools. Admin connects
// as the container superuser and bypasses row-level security; App connects as
// an unprivileged role the way the service does in production.
type Postgres struct {
	Admin *pgxpool.Pool
	App   *pgxpool.Pool
}

// StartPostgres launches a Postgres container, applies the embedded
// migrations and registers cleanup on t.
func StartPostgres(ctx context.Context, t *testing.T) *Postgres {
	t.Helper()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("rythm"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	admin := connect(ctx, t, connStr)
	require.NoError(t, migrations.Up(ctx, admin))

	for _, stmt := range []string{
		fmt.Sprintf(`CREATE ROLE %s LOGIN PASSWORD '%s'`, appRole, appPassword),
		fmt.Sprintf(`GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA public TO %s`, appRole),
		fmt.Sprintf(`GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO %s`, appRole),
	} {
		_, err := admin.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	appURL, err := url.Parse(connStr)
	require.NoError(t, err)
	appURL.User = url.UserPassword(appRole, appPassword)

	return &Postgres{Admin: admin, App: connect(ctx, t, appURL.String())}
}

func connect(ctx context.Context, t *testing.T, connStr string) *pgxpool.Pool {
	t.Helper()

	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				t.Cleanup(pool.Close)
				return pool
			}
			pool.Close()
		}
		if time.Now().After(deadline) {
			require.NoError(t, err, "postgres did not become ready")
		}
		time.Sleep(time.Second)
	}
}
