package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrations en orden de aplicación. Todas son idempotentes (IF NOT EXISTS).
var migrations = []string{
	"migrations/001_create_documents.sql",
	"migrations/002_create_acknowledgments.sql",
	"migrations/003_create_operation_log.sql",
}

// RunMigrations ejecuta los scripts SQL embebidos en orden.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	for _, m := range migrations {
		sqlBytes, err := migrationsFS.ReadFile(m)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m, err)
		}
		if _, err := pool.Exec(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", m, err)
		}
		log.Debug().Str("file", m).Msg("migración aplicada")
	}
	return nil
}
