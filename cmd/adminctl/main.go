// Command adminctl manages admin accounts and the schema of the MySQL
// row store.  It reads the same DB_* variables as the server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/donor-registry/internal/config"
	"github.com/iliyamo/donor-registry/internal/database"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/utils"
)

var rootCmd = &cobra.Command{
	Use:           "adminctl",
	Short:         "Manage donor registry admins and database schema",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account",
	Long: `Create an admin row with a bcrypt hashed password.

The password is taken from --password or, when that is empty, from the
ADMIN_PASSWORD environment variable.`,
	RunE: runCreateAdmin,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
			return database.Migrate(ctx, db, log)
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll the schema back to a version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		to, _ := cmd.Flags().GetInt64("to")
		return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
			if err := database.Rollback(ctx, db, to); err != nil {
				return err
			}
			log.Info().Int64("version", to).Msg("rolled back")
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().String("email", "", "admin email (required)")
	createAdminCmd.Flags().String("name", "", "display name (required)")
	createAdminCmd.Flags().String("password", "", "password, at least 8 characters")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("name")

	rollbackCmd.Flags().Int64("to", 0, "target version (0 reverts only the latest migration)")

	rootCmd.AddCommand(createAdminCmd, migrateCmd, rollbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "adminctl:", err)
		os.Exit(1)
	}
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("password required (--password or ADMIN_PASSWORD)")
	}

	cfg := config.LoadDatabase()
	hash, err := utils.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return err
	}
	return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
		a, err := repository.CreateAdmin(ctx, db, email, name, hash)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		log.Info().Str("id", a.ID).Str("email", a.Email).Msg("admin created")
		return nil
	})
}

// withDB opens the configured database for the duration of fn.
func withDB(parent context.Context, fn func(ctx context.Context, db *sql.DB, log zerolog.Logger) error) error {
	cfg := config.LoadDatabase()
	log := config.NewLogger(cfg)
	if cfg.DBUser == "" || cfg.DBName == "" {
		return errors.New("DB_USER and DB_NAME must be set")
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, time.Minute)
	defer cancel()

	db, err := database.Open(ctx, database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db, log)
}
