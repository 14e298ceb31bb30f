package database

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/docshelf/core/logger"
)

// ErrDirty means an earlier run stopped halfway through a migration. The
// schema has to be repaired by hand and the version forced before retrying.
var ErrDirty = errors.New("database is in a dirty migration state")

// RunMigrations applies the up migrations under the directory named after the
// configured driver, for example "postgres/0001_init.up.sql".
func RunMigrations(ctx context.Context, cfg Config, migrations fs.FS) error {
	if migrations == nil {
		return errors.New("db migrate: nil migrations source")
	}
	driver := cfg.DriverName()
	dsn, err := migrateURL(cfg)
	if err != nil {
		return err
	}
	if driver == DriverPostgres {
		if err := WaitForPostgres(ctx, dsn, 30*time.Second); err != nil {
			return migrateFail("wait", fmt.Errorf("database not ready: %w", err))
		}
	}

	files := upFiles(migrations, driver)
	logger.MIG.Debug("migrations resolved",
		slog.String("event", "resolve"),
		slog.String("driver", driver),
		slog.Int("files_total", len(files)),
	)

	src, err := iofs.New(migrations, driver)
	if err != nil {
		return migrateFail("source", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return migrateFail("init", err)
	}
	m.Log = migrateLog{}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.MIG.Warn("close failed", slog.String("event", "close"), slog.String("err", errors.Join(srcErr, dbErr).Error()))
		}
	}()

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return migrateFail("version", err)
	case dirty:
		return migrateFail("version", fmt.Errorf("%w at version %d", ErrDirty, from))
	}

	// Stop between migrations when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	began := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return migrateFail("apply", err)
	}
	to, _, _ := m.Version()
	applied := between(files, uint64(from), uint64(to))

	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.String("applied", strings.Join(applied, ",")),
		slog.Duration("duration", logger.RoundMS(time.Since(began))),
	)
	return nil
}

func migrateFail(stage string, err error) error {
	logger.MIG.Error("migration failed",
		slog.String("event", stage),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return fmt.Errorf("db migrate %s: %w", stage, err)
}

// migrateLog routes golang-migrate's own progress lines to the MIG logger.
type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	logger.MIG.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("event", "migrate.lib"))
}

func (migrateLog) Verbose() bool { return false }

func migrateURL(cfg Config) (string, error) {
	switch cfg.DriverName() {
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, cfg.Port),
			Path:     "/" + cfg.Name,
			RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
		}
		return u.String(), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return "", errors.New("db migrate: sqlite path is required")
		}
		return "sqlite://" + cfg.Path, nil
	}
	return "", fmt.Errorf("db migrate: unsupported driver %q", cfg.Driver)
}

// upFiles lists dir's *.up.sql names in version order.
func upFiles(migrations fs.FS, dir string) []string {
	paths, _ := fs.Glob(migrations, path.Join(dir, "*.up.sql"))
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, path.Base(p))
	}
	slices.SortFunc(names, func(a, b string) int {
		return cmp.Compare(fileVersion(a), fileVersion(b))
	})
	return names
}

func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// between returns the files whose version lies in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
