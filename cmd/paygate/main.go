package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paygate/internal/clock"
	"github.com/smallbiznis/paygate/internal/config"
	"github.com/smallbiznis/paygate/internal/merchant"
	merchantdomain "github.com/smallbiznis/paygate/internal/merchant/domain"
	"github.com/smallbiznis/paygate/internal/migration"
	"github.com/smallbiznis/paygate/internal/observability"
	"github.com/smallbiznis/paygate/internal/server"
	"github.com/smallbiznis/paygate/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "paygate",
		Short:   "Card payment gateway",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(merchantCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// coreModules is the infrastructure shared by every command.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the event sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				migration.Module,
				server.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
				if err := migration.Apply(conn, cfg.DBType); err != nil {
					return err
				}
				log.Info("database schema up to date", zap.String("type", cfg.DBType))
				return nil
			}))
		},
	}
}

func merchantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchant",
		Short: "Manage merchants",
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a merchant and print its credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(),
				migration.Module,
				merchant.Module,
				fx.Invoke(func(svc merchantdomain.Service) error {
					creds, err := svc.Create(cmd.Context(), merchantdomain.CreateRequest{Name: args[0]})
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(creds)
				}),
			)
		},
	}
	cmd.AddCommand(create)

	return cmd
}

// runOnce starts an app for a one-shot command and stops it afterwards so
// lifecycle hooks close the database and flush the logger.
func runOnce(ctx context.Context, opts ...fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(
		coreModules(),
		fx.NopLogger,
		fx.Options(opts...),
	)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.WithoutCancel(ctx))
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
