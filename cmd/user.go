package cmd

import (
	"fmt"
	"log"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/i18n"
	"github.com/icastillejo/practice-management/internal/user"
	userPostgres "github.com/icastillejo/practice-management/internal/user/postgres"
	"github.com/icastillejo/practice-management/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	userEmail    string
	userPassword string
	userName     string
	userRole     string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long:  `Create and manage user accounts from the command line.`,
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildUserService()
		if err != nil {
			return err
		}

		created, _, err := svc.CreateUser(nil, internal.RequestMeta{}, user.CreateUserDTO{
			Email:    userEmail,
			Password: userPassword,
			Name:     userName,
			Role:     userRole,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created user: %s with role: %s\n", created.Email, created.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildUserService()
		if err != nil {
			return err
		}

		users, err := svc.ListUsers(nil)
		if err != nil {
			return err
		}

		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		fmt.Printf("%-5s %-30s %-12s %-8s %s\n", "ID", "Email", "Role", "Active", "Last Login")
		fmt.Println(
			"--------------------------------------------------------------------------------")
		for _, u := range users {
			lastLogin := "Never"
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format("2006-01-02 15:04")
			}
			active := "No"
			if u.IsActive {
				active = "Yes"
			}
			fmt.Printf("%-5d %-30s %-12s %-8s %s\n", u.ID, u.Email, u.Role, active, lastLogin)
		}
		return nil
	},
}

var userSetRoleCmd = &cobra.Command{
	Use:   "set-role",
	Short: "Change a user's role",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildUserService()
		if err != nil {
			return err
		}

		target, err := svc.GetUserByEmail(nil, userEmail)
		if err != nil {
			return err
		}

		oldRole := target.Role
		updated, _, err := svc.UpdateUser(nil, internal.RequestMeta{}, target.ID, user.UpdateUserDTO{Role: &userRole})
		if err != nil {
			return err
		}

		fmt.Printf("Changed role for %s: %s -> %s\n", updated.Email, oldRole, updated.Role)
		return nil
	},
}

var userResetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Reset a user's password",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildUserService()
		if err != nil {
			return err
		}

		if _, err := svc.ResetPassword(nil, internal.RequestMeta{}, userEmail, userPassword); err != nil {
			return err
		}

		fmt.Printf("Password reset for %s\n", userEmail)
		return nil
	},
}

var userActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Activate a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserActive(userEmail, true)
	},
}

var userDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserActive(userEmail, false)
	},
}

func setUserActive(email string, active bool) error {
	svc, err := buildUserService()
	if err != nil {
		return err
	}

	target, err := svc.GetUserByEmail(nil, email)
	if err != nil {
		return err
	}

	if _, _, err := svc.UpdateUser(nil, internal.RequestMeta{}, target.ID, user.UpdateUserDTO{IsActive: &active}); err != nil {
		return err
	}

	if active {
		fmt.Printf("User %s has been activated.\n", email)
	} else {
		fmt.Printf("User %s has been deactivated.\n", email)
	}
	return nil
}

// buildUserService wires the user service for one-shot CLI invocations. CLI
// callers pass a nil actor, which the service treats as trusted.
func buildUserService() (*user.Service, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := initGorm(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}

	catalog, err := i18n.New(cfg.App.Locale)
	if err != nil {
		return nil, fmt.Errorf("failed to load locale: %w", err)
	}

	caps := auth.NewCapabilities(cfg.Permissions)
	repo := userPostgres.NewUserRepository(db)

	return user.NewService(repo, caps, catalog, cfg.Security, logger.L()), nil
}

func init() {
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "User email address")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "User password")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userRole, "role", "therapist", "User role (admin, therapist, viewer)")
	if err := userCreateCmd.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}
	if err := userCreateCmd.MarkFlagRequired("password"); err != nil {
		log.Fatal(err)
	}

	userSetRoleCmd.Flags().StringVar(&userEmail, "email", "", "User email address")
	userSetRoleCmd.Flags().StringVar(&userRole, "role", "", "New role (admin, therapist, viewer)")
	if err := userSetRoleCmd.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}
	if err := userSetRoleCmd.MarkFlagRequired("role"); err != nil {
		log.Fatal(err)
	}

	userResetPasswordCmd.Flags().StringVar(&userEmail, "email", "", "User email address")
	userResetPasswordCmd.Flags().StringVar(&userPassword, "password", "", "New password")
	if err := userResetPasswordCmd.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}
	if err := userResetPasswordCmd.MarkFlagRequired("password"); err != nil {
		log.Fatal(err)
	}

	userActivateCmd.Flags().StringVar(&userEmail, "email", "", "User email address")
	if err := userActivateCmd.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}

	userDeactivateCmd.Flags().StringVar(&userEmail, "email", "", "User email address")
	if err := userDeactivateCmd.MarkFlagRequired("email"); err != nil {
		log.Fatal(err)
	}

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userSetRoleCmd)
	userCmd.AddCommand(userResetPasswordCmd)
	userCmd.AddCommand(userActivateCmd)
	userCmd.AddCommand(userDeactivateCmd)
}
