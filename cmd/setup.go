package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/readiness-cli/internal/config"
	"github.com/sells-group/readiness-cli/internal/registry"
	"github.com/sells-group/readiness-cli/internal/store"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "readiness.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// selectRegistry picks the methodology: a version from registry_dir, a
// single registry_path file, or the embedded default. A requested
// version must match what was loaded.
func selectRegistry(ec config.EngineConfig, version string) (*registry.Registry, error) {
	if version == "" {
		version = ec.MethodologyVersion
	}

	var (
		reg *registry.Registry
		err error
	)
	switch {
	case ec.RegistryDir != "":
		cat, lerr := registry.LoadDir(ec.RegistryDir)
		if lerr != nil {
			return nil, lerr
		}
		if version == "" {
			versions := cat.Versions()
			version = versions[len(versions)-1]
			zap.L().Info("registry: no version requested, using highest",
				zap.String("version", version),
				zap.Strings("available", versions),
			)
		}
		return cat.Get(version)
	case ec.RegistryPath != "":
		reg, err = registry.Load(ec.RegistryPath)
	default:
		reg, err = registry.Default()
	}
	if err != nil {
		return nil, err
	}
	if version != "" && reg.Version != version {
		return nil, eris.Errorf("registry: methodology version %q requested but %q loaded", version, reg.Version)
	}
	return reg, nil
}
