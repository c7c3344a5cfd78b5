package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thereayou/teamchat/cmd/server"
	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/internal/database"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "teamchat",
	Short:         "Real-time team chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogger(cfg)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := server.NewServer(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		return s.Run(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := server.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("store %q has no schema to migrate", cfg.Store)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		log.Info().Str("store", cfg.Store).Msg("schema migrated")
		return nil
	},
}

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo workspace, users and channels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := server.OpenStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if db == nil {
			return fmt.Errorf("store %q is seeded on startup", cfg.Store)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		res, err := database.Seed(cmd.Context(), db, seedPassword)
		if err != nil {
			return err
		}
		for _, u := range res.Users {
			log.Info().Str("email", u.Email).Str("id", u.ID.String()).Msg("seeded user")
		}
		log.Info().Str("workspace", res.Workspace.Name).Int("channels", len(res.Channels)).Msg("seed complete")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password for the demo users")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("teamchat failed")
		os.Exit(1)
	}
}
