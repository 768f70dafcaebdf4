// Package cli is the command tree of the server binary.
package cli

import (
	"context"

	"github.com/dmitrijs2005/psm/internal/server"
	"github.com/dmitrijs2005/psm/internal/server/config"
	"github.com/spf13/cobra"
)

// runner is what the commands need from the application.
type runner interface {
	Run(ctx context.Context) error
	Migrate(ctx context.Context) error
	CreateAdmin(ctx context.Context, name, password string) (string, error)
	Close() error
}

type appAdapter struct {
	*server.App
}

func (a appAdapter) CreateAdmin(ctx context.Context, name, password string) (string, error) {
	u, err := a.App.CreateAdmin(ctx, name, password)
	if err != nil {
		return "", err
	}
	return u.Name, nil
}

// newRunner builds the application from the merged configuration.
var newRunner = func(ctx context.Context, cfg *config.Config) (runner, error) {
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return appAdapter{app}, nil
}

// NewRootCommand returns the psm command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "psm",
		Short:         "psm - password manager server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newServeCommand(), newMigrateCommand(), newCreateAdminCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API and gRPC health",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRunner(cmd, func(ctx context.Context, r runner) error {
				return r.Migrate(ctx)
			})
		},
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withRunner(cmd, func(ctx context.Context, r runner) error {
		return r.Run(ctx)
	})
}

func withRunner(cmd *cobra.Command, fn func(ctx context.Context, r runner) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := newRunner(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	return fn(ctx, r)
}
