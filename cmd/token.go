package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raggate/raggate/internal/auth"
	"github.com/raggate/raggate/internal/config"
)

var (
	tokenRole   string
	tokenExpire int
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint a JWT for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runToken(args[0])
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleUser, "token role (user or guest)")
	tokenCmd.Flags().IntVar(&tokenExpire, "expire-hours", auth.DefaultExpiry, "token lifetime in hours (default: role-dependent)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(username string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	handler, err := auth.New(auth.Config{
		Secret:           cfg.TokenSecret,
		ExpireHours:      cfg.TokenExpireHours,
		GuestExpireHours: cfg.GuestExpireHours,
		Accounts:         cfg.AuthAccounts,
		UsersFilePath:    cfg.UsersFilePath,
	}, initLogger())
	if err != nil {
		return fmt.Errorf("building auth handler: %w", err)
	}

	token, err := handler.CreateToken(username, tokenRole, tokenExpire, nil)
	if err != nil {
		return fmt.Errorf("creating token: %w", err)
	}

	fmt.Println(token)
	return nil
}
