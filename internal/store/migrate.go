package store

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

//go:embed migrations/*/*.sql
var migrationFS embed.FS

// runMigrations applies the embedded migrations for one dialect
// directory ("sqlite" or "postgres") and logs each applied version.
func runMigrations(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string, opts ...goose.ProviderOption) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("dialect", dir))

	fsys, err := fs.Sub(migrationFS, "migrations/"+dir)
	if err != nil {
		return eris.Wrapf(err, "store: open %s migrations", dir)
	}
	provider, err := goose.NewProvider(dialect, db, fsys, opts...)
	if err != nil {
		return eris.Wrapf(err, "store: init %s migrations", dir)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return eris.Wrapf(err, "store: apply %s migrations", dir)
	}
	for _, r := range results {
		log.Info("store: migration applied",
			zap.Int64("version", r.Source.Version),
			zap.Duration("duration", r.Duration),
		)
	}
	return nil
}
