package database

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"testing/fstest"
)

func TestUpFilesOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/0010_late.up.sql":       {},
		"sqlite/0002_payments.up.sql":   {},
		"sqlite/0002_payments.down.sql": {},
		"sqlite/0001_init.up.sql":       {},
		"postgres/0001_init.up.sql":     {},
	}
	got := upFiles(fsys, "sqlite")
	want := []string{"0001_init.up.sql", "0002_payments.up.sql", "0010_late.up.sql"}
	if !slices.Equal(got, want) {
		t.Fatalf("upFiles = %v", got)
	}
	if got := between(want, 1, 10); !slices.Equal(got, want[1:]) {
		t.Fatalf("between = %v", got)
	}
	if got := between(want, 2, 2); got != nil {
		t.Fatalf("no-op range returned %v", got)
	}
}

func TestMigrateURL(t *testing.T) {
	pg, err := migrateURL(Config{Host: "db", Port: "5432", User: "u", Password: "p@ss", Name: "docs", SSLMode: "disable"})
	if err != nil {
		t.Fatal(err)
	}
	if pg != "postgres://u:p%40ss@db:5432/docs?sslmode=disable" {
		t.Fatalf("postgres url = %q", pg)
	}

	lite, err := migrateURL(Config{Driver: DriverSQLite, Path: "/tmp/x.db"})
	if err != nil || lite != "sqlite:///tmp/x.db" {
		t.Fatalf("sqlite url = %q, %v", lite, err)
	}
	if _, err := migrateURL(Config{Driver: DriverSQLite}); err == nil {
		t.Fatal("sqlite without path must fail")
	}
	if _, err := migrateURL(Config{Driver: "mysql"}); err == nil || !strings.Contains(err.Error(), "mysql") {
		t.Fatalf("unsupported driver: %v", err)
	}
}

func TestRunMigrationsSQLite(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/0001_init.up.sql":   {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY);")},
		"sqlite/0001_init.down.sql": {Data: []byte("DROP TABLE t;")},
	}
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db")}
	for range 2 {
		if err := RunMigrations(context.Background(), cfg, fsys); err != nil {
			t.Fatal(err)
		}
	}
	if err := RunMigrations(context.Background(), cfg, nil); err == nil {
		t.Fatal("nil source must fail")
	}
}
