// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sundayezeilo/linkshield/internal/db/migrations"
)

// DriverURL rewrites a postgres:// DSN to the scheme the pgx v5 migrate driver registers.
func DriverURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(format string, v ...any) {
	a.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (a slogAdapter) Verbose() bool { return false }

func open(dsn string, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m.Log = slogAdapter{logger: logger}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) error {
	srcErr, dbErr := m.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies every pending migration. An already current schema is not an error.
func Up(dsn string, logger *slog.Logger) (err error) {
	m, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeMigrate(m)) }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func Down(dsn string, steps int, logger *slog.Logger) (err error) {
	if steps <= 0 {
		return fmt.Errorf("migrate down: steps must be positive, got %d", steps)
	}
	m, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeMigrate(m)) }()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version reports the applied schema version. A fresh database reports 0.
func Version(dsn string, logger *slog.Logger) (version uint, dirty bool, err error) {
	m, err := open(dsn, logger)
	if err != nil {
		return 0, false, err
	}
	defer func() { err = errors.Join(err, closeMigrate(m)) }()

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate version: %w", err)
	}
	return version, dirty, nil
}
