package main

import (
	"context"
	"fmt"
	"time"

	"bidvault/internal/auth"
	"bidvault/internal/repository"
	"bidvault/utils"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DBDriver == repository.DriverMemory {
			return fmt.Errorf("migrate: DB_DRIVER=memory has no schema")
		}
		_, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		utils.Info("Database migrated", map[string]any{"driver": cfg.DBDriver})
		return closeStore()
	},
}

var closeExpiredCmd = &cobra.Command{
	Use:   "close-expired",
	Short: "Close every auction whose end time has passed, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		closed, err := a.closer.CloseAll(ctx)
		utils.Info("Expired auctions closed", map[string]any{"closed": closed})
		fmt.Fprintf(cmd.OutOrStdout(), "closed %d auctions\n", closed)
		return err
	},
}

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for a user id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.NewVerifier(cfg.JWTSecret).Issue(tokenUser, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id carried in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
