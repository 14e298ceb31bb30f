package bootstrap

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/docshelf/core/config"
	coredatabase "github.com/m3rciful/docshelf/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestRunSQLiteEndToEnd(t *testing.T) {
	migrations := fstest.MapFS{
		"sqlite/0001_init.up.sql":   {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE t;")},
	}
	dbCfg := coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "boot.db"),
	}

	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   dbCfg,
		Migrations: migrations,
		LoggerInit: noLogger,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer res.Close(context.Background())

	if _, err := res.DB.Exec("INSERT INTO t (id) VALUES (1)"); err != nil {
		t.Fatalf("migrated table missing: %v", err)
	}
	if res.Metrics != nil {
		t.Fatalf("metrics should be disabled without a listen address")
	}
}

func TestRunClosesDBWhenMigrationsFail(t *testing.T) {
	var connected bool
	dbCfg := coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")}

	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   dbCfg,
		LoggerInit: noLogger,
		Connect: func(ctx context.Context, cfg coredatabase.Config) (*sqlx.DB, error) {
			db, err := coredatabase.Connect(ctx, cfg)
			connected = err == nil
			return db, err
		},
		Migrate: func(context.Context, coredatabase.Config, fs.FS) error { return errors.New("bad migration") },
	})
	if err == nil || !connected {
		t.Fatalf("expected migration failure, got %v", err)
	}
}
