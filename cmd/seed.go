package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"messenger-api/database"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Insert default feature toggles and optionally an admin account",
		Long: `Inserts the default feature toggles that are missing. When an admin email
and password are given, that account is registered (or found) and promoted to admin.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}
)

func init() {
	seedCmd.Flags().StringVar(&adminName, "admin-name", "Administrator", "display name of the seeded admin")
	seedCmd.Flags().StringVar(&adminEmail, "admin-email", os.Getenv("ADMIN_EMAIL"), "email of the admin account to seed")
	seedCmd.Flags().StringVar(&adminPassword, "admin-password", os.Getenv("ADMIN_PASSWORD"), "password of the admin account to seed")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := database.SeedData(ctx, a.store, log); err != nil {
		return err
	}

	if adminEmail == "" || adminPassword == "" {
		log.Info("no admin credentials given, skipping admin account")
		return nil
	}
	id, err := database.SeedAdmin(ctx, a.store, a.deps, adminName, adminEmail, adminPassword)
	if err != nil {
		return err
	}
	log.Info("seed complete", zap.String("admin_id", id))
	return nil
}
