package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/loyaltylabs/loyalsync/internal/adjustment"
	"github.com/loyaltylabs/loyalsync/internal/catalog"
	"github.com/loyaltylabs/loyalsync/internal/clock"
	"github.com/loyaltylabs/loyalsync/internal/config"
	"github.com/loyaltylabs/loyalsync/internal/db"
	"github.com/loyaltylabs/loyalsync/internal/importer"
	"github.com/loyaltylabs/loyalsync/internal/member"
	"github.com/loyaltylabs/loyalsync/internal/metrics"
	metricsservice "github.com/loyaltylabs/loyalsync/internal/metrics/service"
	"github.com/loyaltylabs/loyalsync/internal/migration"
	"github.com/loyaltylabs/loyalsync/internal/observability"
	"github.com/loyaltylabs/loyalsync/internal/providers"
	"github.com/loyaltylabs/loyalsync/internal/redemption"
	redemptionservice "github.com/loyaltylabs/loyalsync/internal/redemption/service"
	"github.com/loyaltylabs/loyalsync/internal/runlock"
	"github.com/loyaltylabs/loyalsync/internal/scheduler"
	"github.com/loyaltylabs/loyalsync/internal/server"
	"github.com/loyaltylabs/loyalsync/internal/store"
	"github.com/loyaltylabs/loyalsync/internal/transaction"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "loyalsync",
		Short:   "Loyalsync rewards metrics engine CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(
		newMigrateCmd(),
		newServeCmd(),
		newSchedulerCmd(),
		newRunImportCmd(),
		newRunMetricsCmd(),
		newHandleRedemptionsCmd(),
		newAllCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP trigger server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the periodic aggregation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newRunImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-initial-import",
		Short: "Pull members, cards and transactions from all providers, then aggregate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(fx.Invoke(func(p *importer.Pipeline) error {
				return p.RunInitialImport(context.Background())
			}))
		},
	}
}

func newRunMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-metrics",
		Short: "Run a single full aggregation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(fx.Invoke(func(s *metricsservice.Service) error {
				return s.RunMetrics(context.Background(), nil)
			}))
		},
	}
}

func newHandleRedemptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handle-redemptions",
		Short: "Link unattributed redemptions to members and programs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOneShot(fx.Invoke(func(r *redemptionservice.Reconciler) error {
				return r.Run(context.Background())
			}))
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the server and scheduler together",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func baseModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		store.Module,
	)
}

func domainModules() fx.Option {
	return fx.Options(
		member.Module,
		catalog.Module,
		transaction.Module,
		adjustment.Module,
		redemption.Module,
		runlock.Module,
		metrics.Module,
		providers.Module,
		importer.Module,
	)
}

func runMigrate() error {
	app := fx.New(
		baseModules(),
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		baseModules(),
		domainModules(),
		server.Module,
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		baseModules(),
		domainModules(),
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		baseModules(),
		domainModules(),
		server.Module,
		scheduler.Module,
		fx.Invoke(startScheduler),
	)
	app.Run()
}

func runOneShot(invoke fx.Option) error {
	app := fx.New(
		baseModules(),
		domainModules(),
		invoke,
	)

	if err := app.Start(context.Background()); err != nil {
		return err
	}
	return app.Stop(context.Background())
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}

func startScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(context.Background())
			return nil
		},
	})
}
