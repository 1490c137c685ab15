package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/bunx"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/db/models"
	"github.com/lksnext-ai-lab/ai-core-tools-sub002/internal/repository"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User management commands",
	Long: `Commands for managing console users. In provider mode users are
provisioned on first login; these commands register users for fallback mode
and control admin flags in either mode.`,
}

var (
	userEmail     string
	userName      string
	userAdmin     bool
	userOmniAdmin bool
)

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		users := repository.NewBunUserRepository(db)
		ctx := context.Background()

		existing, err := users.GetByEmail(ctx, userEmail)
		if err == nil && existing != nil {
			return fmt.Errorf("user already exists: %s", userEmail)
		}

		user := &models.User{
			Email:       userEmail,
			Name:        userName,
			IsAdmin:     userAdmin,
			IsOmniAdmin: userOmniAdmin,
		}
		if err := users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		log.Printf("Created user %s (%s) admin=%t omniadmin=%t", user.ID, user.Email, user.IsAdmin, user.IsOmniAdmin)
		return nil
	},
}

var usersSetAdminCmd = &cobra.Command{
	Use:   "set-admin",
	Short: "Set admin flags on an existing user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}

		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		users := repository.NewBunUserRepository(db)
		ctx := context.Background()

		user, err := users.GetByEmail(ctx, userEmail)
		if err != nil || user == nil {
			return fmt.Errorf("user not found: %s", userEmail)
		}

		user.IsAdmin = userAdmin
		user.IsOmniAdmin = userOmniAdmin
		if err := users.Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		log.Printf("Updated user %s admin=%t omniadmin=%t", user.Email, user.IsAdmin, user.IsOmniAdmin)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		users := repository.NewBunUserRepository(db)
		all, err := users.List(context.Background())
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		for i := range all {
			u := &all[i]
			flags := ""
			if u.IsAdmin {
				flags += " admin"
			}
			if u.IsOmniAdmin {
				flags += " omniadmin"
			}
			if u.DisabledAt != nil {
				flags += " disabled"
			}
			log.Printf("%s  %s  %s%s", u.PrincipalSubject(), u.Email, u.Name, flags)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersSetAdminCmd)
	usersCmd.AddCommand(usersListCmd)

	for _, c := range []*cobra.Command{usersCreateCmd, usersSetAdminCmd} {
		c.Flags().StringVar(&userEmail, "email", "", "User email (required)")
		c.Flags().StringVar(&userName, "name", "", "Display name")
		c.Flags().BoolVar(&userAdmin, "admin", false, "Grant tenant admin")
		c.Flags().BoolVar(&userOmniAdmin, "omniadmin", false, "Grant cross-tenant admin")
	}
}
