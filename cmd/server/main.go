package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ButyrinIA/feed/internal/config"
	"github.com/ButyrinIA/feed/internal/logging"
	"github.com/ButyrinIA/feed/internal/models"
	"github.com/ButyrinIA/feed/internal/server"
	"github.com/ButyrinIA/feed/internal/storage"
	"github.com/ButyrinIA/feed/internal/storage/memory"
	"github.com/ButyrinIA/feed/internal/storage/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const ErrExitCode = 1

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Println(err.Error())
		os.Exit(ErrExitCode)
	}
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "сервер ленты: обсуждения и поиск",
	}
	cmd.AddCommand(
		newServeCmd(),
		newTokenCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	var configPath, storageType string
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "запуск HTTP сервера",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, configPath, storageType)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "путь к файлу конфигурации")
	cmd.Flags().StringVar(&storageType, "storage", "memory", "тип хранилища: memory или postgres")
	return cmd
}

func serve(ctx context.Context, configPath, storageType string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, level, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()

	var store storage.Store
	switch storageType {
	case "postgres":
		logger.Info("Инициализация хранилища PostgreSQL")
		store, err = postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("failed to init postgres: %w", err)
		}
	case "memory":
		logger.Info("Инициализация хранилища Memory")
		store = memory.New()
	default:
		return fmt.Errorf("unknown storage type: %s", storageType)
	}
	defer store.Close()

	srv := server.New(cfg, store, logger, level)
	logger.Info("Запуск сервера", zap.String("port", cfg.Server.Port))
	return srv.Run(ctx)
}

func newTokenCmd() *cobra.Command {
	var (
		configPath string
		drive      models.Drive
		ttl        time.Duration
	)
	cmd := &cobra.Command{
		Use:          "token",
		Short:        "выпуск токена для drive",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			tok, err := server.GenerateToken(cfg.Server.JWTSecret, drive, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "путь к файлу конфигурации")
	cmd.Flags().StringVar(&drive.ID, "drive", "", "идентификатор drive")
	cmd.Flags().StringVar(&drive.Title, "title", "", "заголовок drive")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "время жизни токена")
	_ = cmd.MarkFlagRequired("drive")
	return cmd
}
