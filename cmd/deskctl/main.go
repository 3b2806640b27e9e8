// Command deskctl runs one-off maintenance tasks against the support desk database.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/worker"
)

type runtime struct {
	cfg    *config.Config
	logger *zap.Logger
	pg     *persistence.Postgres
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deskctl",
		Short:         "Maintenance commands for the IT support desk",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newMigrateCmd(), newSeedAdminCmd(), newSLAScanCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := persistence.MigrationNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			rt, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()
			return persistence.RunMigrations(cmd.Context(), rt.pg.PoolHandle(), rt.logger)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "only print the migration files in apply order")
	return cmd
}

func newSeedAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or promote an administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("DESK_ADMIN_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return fmt.Errorf("--email and --password (or DESK_ADMIN_PASSWORD) are required")
			}
			rt, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			users := service.NewUserService(service.UserDependencies{
				UserRepo:   repository.NewUserRepository(rt.pg.PoolHandle()),
				Policy:     auth.MustPolicy(),
				BcryptCost: rt.cfg.Auth.BcryptCost,
			})
			user, created, err := users.SeedAdmin(cmd.Context(), name, email, password)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s %s (%s)\n", user.Email, verb, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name for a new account")
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "password for a new account")
	return cmd
}

func newSLAScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sla-scan",
		Short: "Alert every overdue ticket once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			pool := rt.pg.PoolHandle()
			dispatcher := events.NewInMemoryDispatcher(events.WithLogger(rt.logger))
			notifications := service.NewNotificationService(rt.cfg.Notification, service.NotificationDependencies{
				NotificationRepo: repository.NewNotificationRepository(pool),
				UserRepo:         repository.NewUserRepository(pool),
				Dispatcher:       dispatcher,
				Logger:           rt.logger,
			})
			notifications.RegisterHandlers()

			scanner := worker.NewSLAScanner(repository.NewSLARepository(pool), dispatcher, nil, rt.logger)
			n, err := scanner.Scan(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d overdue tickets alerted\n", n)
			return nil
		},
	}
}

func connect(ctx context.Context) (*runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &runtime{cfg: cfg, logger: logger, pg: pg}, nil
}

func (r *runtime) close() {
	r.pg.Close()
	_ = r.logger.Sync()
}
