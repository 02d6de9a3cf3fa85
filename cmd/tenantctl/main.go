// Command tenantctl is the operator tool for tenants, user associations and
// the audit trail. It works below the request pipeline: every database call
// runs through an audited platform session.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/mise/backend/internal/infrastructure/logger"
	"github.com/mise/backend/internal/infrastructure/persistence"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is the state shared by all subcommands
type env struct {
	cfg         *config.Config
	log         *zap.Logger
	db          *persistence.Database
	platform    *tenant.Platform
	provisioner *tenancy.Provisioner
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		e          = &env{}
	)

	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Manage tenants, user associations and the audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open(configPath, verbose)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return e.close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search ./, /etc/mise, /app)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newTenantCmd(e), newUserCmd(e), newAuditCmd(e), newTokenCmd(e))
	return root
}

func (e *env) open(configPath string, verbose bool) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}

	db, err := persistence.NewDatabase(&cfg.Database, logger.NewGormLogger(log, logger.MapGormLogLevel(level)))
	if err != nil {
		return err
	}
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
	}

	platform := tenant.NewPlatform(db.DB, log)
	directory := persistence.NewGormTenantDirectory(db.DB, persistence.DirectoryOptions{
		Retries:    cfg.Tenancy.DirectoryRetries,
		RetryDelay: cfg.Tenancy.DirectoryRetryDelay,
		Logger:     log,
	})

	e.cfg, e.log, e.db, e.platform = cfg, log, db, platform
	// running servers pick changes up when their cache entries expire
	e.provisioner = tenancy.NewProvisioner(directory, persistence.NewGormUserDirectory(platform), nil, log)
	return nil
}

func (e *env) close() error {
	if e.log != nil {
		_ = e.log.Sync()
	}
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

func (e *env) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), e.log)
}
