// Package main applies the embedded database migrations.
//
// Usage:
//
//	go run ./cmd/migrate                 # apply everything pending
//	go run ./cmd/migrate -steps=-1       # roll back one migration
//	go run ./cmd/migrate -version        # print the current version
//	go run ./cmd/migrate -force=3        # clear a dirty flag at version 3
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"barecourier/internal/app"
	"barecourier/internal/config"
	"barecourier/internal/db"
)

// Migrator is the subset of *migrate.Migrate the command drives.
type Migrator interface {
	Up() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
}

type options struct {
	steps       int
	force       int
	showVersion bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	// Only the database section is needed; secrets still resolve through SSM.
	if err := config.ResolveSecrets(app.SecretProvider()); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	logger := app.NewLogger(os.Getenv("LOG_LEVEL")).With("component", "migrate")
	return execute(m, opts, out, logger)
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.IntVar(&opts.steps, "steps", 0, "apply n migrations; negative rolls back. 0 applies all pending")
	fs.IntVar(&opts.force, "force", -1, "set the version without running migrations, clearing the dirty flag")
	fs.BoolVar(&opts.showVersion, "version", false, "print the current schema version and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.force >= 0 && opts.steps != 0 {
		return options{}, errors.New("-force and -steps are mutually exclusive")
	}
	return opts, nil
}

func execute(m Migrator, opts options, out io.Writer, logger *slog.Logger) error {
	switch {
	case opts.showVersion:
		// fall through to the version report
	case opts.force >= 0:
		if err := m.Force(opts.force); err != nil {
			return fmt.Errorf("force version %d: %w", opts.force, err)
		}
		logger.Warn("schema version forced", "version", opts.force)
	case opts.steps != 0:
		if err := m.Steps(opts.steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate %d steps: %w", opts.steps, err)
		}
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	fmt.Fprintf(out, "version: %d dirty: %t\n", version, dirty)
	return nil
}
