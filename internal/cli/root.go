// Package cli implements the repairctl administration commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/config"
	"github.com/repairdesk/repair-service/internal/observability"
	"github.com/repairdesk/repair-service/internal/persistence"
	"github.com/repairdesk/repair-service/internal/repository"
)

// Backend is the storage the commands operate on.
type Backend struct {
	Users     repository.UserRepository
	Equipment repository.EquipmentRepository
	Tickets   repository.RepairTicketRepository
	Migrate   func(ctx context.Context, dir string) error
	Close     func()
}

// Connector opens a Backend for the loaded configuration.
type Connector func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error)

// Options customizes the root command. Zero values select the production wiring.
type Options struct {
	Version    string
	LoadConfig func() (*config.Config, error)
	Connect    Connector
	Out        io.Writer
}

type app struct {
	opts    Options
	cfg     *config.Config
	logger  *zap.Logger
	backend *Backend
}

// NewRootCommand builds the repairctl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}
	if opts.Connect == nil {
		opts.Connect = ConnectPostgres
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:               "repairctl",
		Short:             "Administer the repair ticket service",
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
		PersistentPostRun: func(*cobra.Command, []string) { a.shutdown() },
	}
	root.SetOut(opts.Out)

	root.AddCommand(a.migrateCommand())
	root.AddCommand(a.seedCommand())
	root.AddCommand(a.createUserCommand())
	root.AddCommand(a.versionCommand())
	return root
}

// Execute runs the command tree against os.Args.
func Execute(version string) {
	if err := NewRootCommand(Options{Version: version}).Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := a.opts.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger

	backend, err := a.opts.Connect(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	a.backend = backend
	return nil
}

func (a *app) shutdown() {
	if a.backend != nil && a.backend.Close != nil {
		a.backend.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// ConnectPostgres opens the configured database.
func ConnectPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pool := pg.PoolHandle()
	return &Backend{
		Users:     repository.NewUserRepository(pool),
		Equipment: repository.NewEquipmentRepository(pool),
		Tickets:   repository.NewRepairTicketRepository(pool),
		Migrate: func(ctx context.Context, dir string) error {
			return persistence.RunMigrations(ctx, pg, dir, logger)
		},
		Close: pg.Close,
	}, nil
}
