package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/herbtrace/backend/internal/infrastructure/config"
	"github.com/herbtrace/backend/internal/infrastructure/logger"
	"github.com/herbtrace/backend/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("usage")

// fileCommands only touch the migrations directory
var fileCommands = map[string]func(log *zap.Logger, dir string, args []string) error{
	"create": createMigration,
	"list":   listMigrations,
}

// dbCommands run against the configured postgres database
var dbCommands = map[string]func(log *zap.Logger, m *migration.Migrator, dir string, args []string) error{
	"up": func(_ *zap.Logger, m *migration.Migrator, _ string, _ []string) error {
		return m.Up()
	},
	"down": func(_ *zap.Logger, m *migration.Migrator, _ string, _ []string) error {
		return m.Down()
	},
	"step": func(_ *zap.Logger, m *migration.Migrator, _ string, args []string) error {
		n, err := intArg(args, "step count")
		if err != nil {
			return err
		}
		return m.Steps(n)
	},
	"force": func(_ *zap.Logger, m *migration.Migrator, _ string, args []string) error {
		v, err := intArg(args, "version")
		if err != nil {
			return err
		}
		return m.Force(v)
	},
	"version": showVersion,
	"status":  showStatus,
}

func main() {
	var migrationsPath, logLevel string
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (default: database.migrations_path or ./migrations)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync(log) }()

	if err := run(log, migrationsPath, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			log.Error(err.Error())
			printUsage()
			os.Exit(2)
		}
		log.Fatal("Migration command failed", zap.String("command", args[0]), zap.Error(err))
	}
}

func run(log *zap.Logger, pathFlag, command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	dir, err := filepath.Abs(resolveMigrationsPath(pathFlag, cfg.Database.MigrationsPath))
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}
	log.Info("Migration CLI started", zap.String("command", command), zap.String("migrations_path", dir))

	if cmd, ok := fileCommands[command]; ok {
		return cmd(log, dir, args)
	}
	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	if cfg.Database.Driver == "sqlite" {
		return errors.New("SQL migrations target postgres; sqlite schemas are created by the server at startup")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, migration.Config{MigrationsPath: dir}, log)
	if err != nil {
		return err
	}
	defer m.Close()
	return cmd(log, m, dir, args)
}

func createMigration(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: migration name required", errUsage)
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func listMigrations(log *zap.Logger, dir string, _ []string) error {
	files, err := migration.ListMigrations(dir)
	if err != nil {
		return err
	}
	log.Info("Available migrations", zap.Int("count", len(files)))
	for _, f := range files {
		fmt.Println("  -", f)
	}
	return nil
}

func showVersion(log *zap.Logger, m *migration.Migrator, _ string, _ []string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if version == 0 {
		log.Info("No migrations applied")
		return nil
	}
	log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

func showStatus(log *zap.Logger, m *migration.Migrator, dir string, _ []string) error {
	status, err := m.Status(dir)
	if err != nil {
		return err
	}
	log.Info("Migration status",
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty),
		zap.Int("available", status.Available),
	)
	return nil
}

func intArg(args []string, what string) (int, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: %s required", errUsage, what)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", errUsage, what, args[0])
	}
	return n, nil
}

// resolveMigrationsPath prefers the flag, then config, then ./migrations,
// then the repository layout relative to the binary.
func resolveMigrationsPath(flagPath, configured string) string {
	if flagPath != "" {
		return flagPath
	}
	if configured != "" {
		return configured
	}
	if _, err := os.Stat(defaultMigrationsPath); err == nil {
		return defaultMigrationsPath
	}
	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return defaultMigrationsPath
}

func printUsage() {
	fmt.Println(`Herb Trace Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  version               Show current migration version
  status                Show current version and available migration count
  force <version>       Force set migration version (use with caution)
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations

Flags:
  -path string          Path to migrations directory
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  HERB_DATABASE_HOST, HERB_DATABASE_PORT, HERB_DATABASE_USER,
  HERB_DATABASE_PASSWORD, HERB_DATABASE_DBNAME, HERB_DATABASE_SSLMODE

Examples:
  migrate up
  migrate step -1
  migrate create add_collector_index "Index herb batches by collector"
  migrate status`)
}
