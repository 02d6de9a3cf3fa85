package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/mise/backend/internal/infrastructure/logger"
	"github.com/mise/backend/internal/infrastructure/migration"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
)

func main() {
	var (
		dir         string
		configPath  string
		logLevel    string
		tenantTable string
		description string
	)
	flag.StringVar(&dir, "path", "", "Migrations directory (default: migrations embedded in the binary)")
	flag.StringVar(&configPath, "config", "", "Config file (default: search ./config and ./)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&tenantTable, "tenant-table", "", "create: scaffold a tenant-scoped table with this name")
	flag.StringVar(&description, "description", "", "create: description comment")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// Commands that only touch the filesystem
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate -path migrations create <name>")
		}
		if dir == "" {
			dir = "migrations"
		}
		mf, err := migration.CreateMigration(dir, args[1], migration.CreateOptions{
			Description: description,
			TenantTable: tenantTable,
		})
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up", mf.UpPath),
			zap.String("down", mf.DownPath),
			zap.Bool("tenant_scoped", mf.TenantScoped),
		)
		return
	case "list":
		if dir == "" {
			dir = "migrations"
		}
		list, err := migration.ListMigrations(dir)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, m := range list {
			fmt.Println(m.String())
		}
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.Database.Driver == "sqlite" {
		log.Fatal("Versioned migrations target PostgreSQL; sqlite schemas are auto-migrated by the server")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	if command == "check" {
		if err := migration.CheckTenantColumns(ctx, db, tenant.DefaultColumn, models.TenantTables()); err != nil {
			log.Fatal("Tenant column check failed", zap.Error(err))
		}
		log.Info("Every tenant-scoped table has a tenant column", zap.Strings("tables", models.TenantTables()))
		return
	}

	m, err := migration.New(db, dir, log)
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
		if err == nil {
			err = migration.CheckTenantColumns(ctx, db, tenant.DefaultColumn, models.TenantTables())
		}
	case "down":
		err = m.Down()
	case "step":
		var n int
		n, err = strconv.Atoi(argAt(log, args, 1, "step <n>"))
		if err == nil {
			err = m.Steps(n)
		}
	case "goto":
		var version uint64
		version, err = strconv.ParseUint(argAt(log, args, 1, "goto <version>"), 10, 32)
		if err == nil {
			err = m.GoTo(uint(version))
		}
	case "force":
		var version int
		version, err = strconv.Atoi(argAt(log, args, 1, "force <version>"))
		if err == nil {
			err = m.Force(version)
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr == nil {
			log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
		err = verr
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func argAt(log *zap.Logger, args []string, i int, usage string) string {
	if len(args) <= i {
		log.Fatal("Missing argument", zap.String("usage", "migrate "+usage))
	}
	return args[i]
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Mise database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                 Apply all pending migrations, then run check
  down               Roll back all migrations
  step <n>           Apply n migrations (negative rolls back)
  goto <version>     Migrate to a specific version
  version            Show the applied version
  force <version>    Set the version without migrating (repairs a dirty schema)
  check              Verify every tenant-scoped table has a NOT NULL tenant_id
  create <name>      Write the next numbered migration pair into -path
  list               List migrations in -path

Flags:`)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Environment:
  MISE_DATABASE_HOST, MISE_DATABASE_PORT, MISE_DATABASE_USER,
  MISE_DATABASE_PASSWORD, MISE_DATABASE_DBNAME, MISE_DATABASE_SSLMODE`)
}
