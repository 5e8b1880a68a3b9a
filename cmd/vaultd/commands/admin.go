package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vaultd/vaultd/internal/cli/output"
	"github.com/vaultd/vaultd/internal/cli/prompt"
	"github.com/vaultd/vaultd/pkg/config"
	"github.com/vaultd/vaultd/pkg/password"
	"github.com/vaultd/vaultd/pkg/store"
)

// adminCmd groups the operational commands an operator runs against a live
// deployment's Metadata Store directly, bypassing the HTTP API (C.2).
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative operations against the metadata store",
}

var adminUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var adminUsersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all user accounts",
	RunE:  runAdminUsersList,
}

var adminSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage sessions",
}

var adminSessionsListUser string

var adminSessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's active sessions",
	RunE:  runAdminSessionsList,
}

var adminUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage a single user account",
}

var adminUserResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <username>",
	Short: "Reset a user's login password",
	Long: `Reset a user's login password.

This changes only the account's login credential. It does not, and cannot,
re-wrap the user's existing end-to-end encrypted private key: that
re-wrapping requires the user's client and their old password. After a
reset, the user can log in with the new password but must use their
account recovery flow (if any) to regain access to previously uploaded
files, since the server never has access to the key that decrypts them.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdminUserResetPassword,
}

func init() {
	adminSessionsListCmd.Flags().StringVar(&adminSessionsListUser, "user", "", "username to list sessions for (required)")
	_ = adminSessionsListCmd.MarkFlagRequired("user")

	adminUsersCmd.AddCommand(adminUsersListCmd)
	adminSessionsCmd.AddCommand(adminSessionsListCmd)
	adminUserCmd.AddCommand(adminUserResetPasswordCmd)

	adminCmd.AddCommand(adminUsersCmd)
	adminCmd.AddCommand(adminSessionsCmd)
	adminCmd.AddCommand(adminUserCmd)
}

// openAdminStore loads configuration and opens the Metadata Store directly,
// the way every admin subcommand needs to.
func openAdminStore() (*config.Config, store.Store, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return cfg, st, nil
}

func runAdminUsersList(cmd *cobra.Command, args []string) error {
	_, st, err := openAdminStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	table := output.NewTableData("USERNAME", "EMAIL", "ADMIN", "USED", "TOTAL", "CREATED")
	for _, u := range users {
		email := ""
		if u.Email != nil {
			email = *u.Email
		}
		table.AddRow(
			u.Username,
			email,
			strconv.FormatBool(u.IsAdmin),
			strconv.FormatInt(u.UsedSpace, 10),
			strconv.FormatInt(u.TotalSpace, 10),
			u.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runAdminSessionsList(cmd *cobra.Command, args []string) error {
	_, st, err := openAdminStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	u, err := st.GetUserByUsername(ctx, adminSessionsListUser)
	if err != nil {
		return fmt.Errorf("failed to look up user %q: %w", adminSessionsListUser, err)
	}

	sessions, err := st.ListSessions(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	table := output.NewTableData("NUMBER", "CLIENT", "CREATED", "LAST USED")
	for _, s := range sessions {
		table.AddRow(
			strconv.Itoa(s.Number),
			s.ClientInfo,
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.LastUsedAt.Format("2006-01-02 15:04"),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runAdminUserResetPassword(cmd *cobra.Command, args []string) error {
	username := args[0]

	_, st, err := openAdminStore()
	if err != nil {
		return err
	}

	ctx := context.Background()
	u, err := st.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to look up user %q: %w", username, err)
	}

	confirmed, err := prompt.Confirm(fmt.Sprintf("Reset login password for %q? Existing encrypted files will remain locked until the user restores access", username))
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("aborted")
		return nil
	}

	newPassword, err := prompt.PasswordWithConfirmation("New password", "Confirm new password", password.MinPasswordLength)
	if err != nil {
		return err
	}
	if err := password.Validate(newPassword); err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := st.UpdateProfile(ctx, u.ID, map[string]any{"password_hash": hash}); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Printf("password reset for %q\n", username)
	return nil
}
