package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ignews-service/internal/app"
	"ignews-service/internal/config"
	"ignews-service/internal/db"
	"ignews-service/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "server",
		Short:         "ignews sign-in and content service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withConfig(cmd, serve)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(cmd, serve)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withConfig(cmd, migrate)
			},
		},
		&cobra.Command{
			Use:   "upsert-user <email>",
			Short: "Create or fetch the user for an email",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withConfig(cmd, func(ctx context.Context, cfg config.Config) error {
					return upsertUser(ctx, cfg, cmd, args[0])
				})
			},
		},
	)

	return root
}

func withConfig(cmd *cobra.Command, run func(context.Context, config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		cmd.Context(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("command failed", map[string]any{
			"command": cmd.Name(),
			"error":   err,
		})
		return err
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := application.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("ignews-service started", map[string]any{
		"port":  cfg.AppPort,
		"store": cfg.UserStore,
	})

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received", nil)
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("ignews-service stopped cleanly", nil)
	return nil
}

func migrate(ctx context.Context, cfg config.Config) error {
	if cfg.UserStore != config.UserStorePostgres {
		return fmt.Errorf("migrate needs USER_STORE=%s, got %q", config.UserStorePostgres, cfg.UserStore)
	}

	database, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database.DB); err != nil {
		return err
	}

	logger.Info("migrations applied", nil)
	return nil
}

func upsertUser(ctx context.Context, cfg config.Config, cmd *cobra.Command, email string) error {
	infra, err := app.SetupInfra(ctx, cfg)
	if err != nil {
		return err
	}
	defer infra.Close()

	res, err := infra.UserService(cfg).Upsert(ctx, email)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Outcome, res.Record.ID, res.Record.Data.Email)
	return nil
}
