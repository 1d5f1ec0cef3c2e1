package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/bhmc/slot-reservation/internal/utils"
)

// tokenCmd mints bearer tokens for local testing.  Production tokens come
// from the club website's session.
func tokenCmd() *cobra.Command {
	var (
		userID   uint64
		playerID uint64
		role     string
		name     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		Example: `  registerctl token --user 7 --player 11 --name "Pat Member"
  registerctl token --user 1 --role ADMIN`,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			role = strings.ToUpper(role)
			if role != utils.RoleMember && role != utils.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}
			tok, err := utils.NewAccessToken(secret, userID, playerID, role, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&userID, "user", 0, "user id (sub claim)")
	cmd.Flags().Uint64Var(&playerID, "player", 0, "player id of the user")
	cmd.Flags().StringVar(&role, "role", utils.RoleMember, "MEMBER or ADMIN")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
