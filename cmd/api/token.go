package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cp-path-builder/backend/internal/service"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for local testing",
	Long: `Signs an access token with the configured secret. Production tokens
come from the identity service; this is for development and smoke tests.`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().String("user", "", "user id (a random one when empty)")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
}

func runToken(cmd *cobra.Command, _ []string) error {
	rawUser, _ := cmd.Flags().GetString("user")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	userID := uuid.New()
	if rawUser != "" {
		var err error
		if userID, err = uuid.Parse(rawUser); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	rt, err := loadApp()
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.config.IsProduction() {
		return errors.New("refusing to issue tokens in production")
	}

	token, expiresAt, err := service.NewTokenService(&rt.config.JWT).IssueAccessToken(userID, ttl)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user:    %s\n", userID)
	fmt.Fprintf(out, "expires: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Fprintln(out, token)
	return nil
}
