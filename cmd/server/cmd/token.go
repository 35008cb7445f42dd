package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/checkin/internal/auth"
)

// newTokenCommand mints a bearer token with the server's signing settings.
// It does not consult the database, so the user id must already exist for
// the token to authenticate.
func newTokenCommand(global *globalOptions) *cobra.Command {
	var (
		userID   int64
		username string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an existing user",
		Example: `  checkin token --user-id 1 --username admin
  curl -H "Authorization: Bearer $(checkin token --user-id 1 --username admin)" localhost:8080/users/me`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user-id must be positive")
			}
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			token, err := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer).Issue(userID, username)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "id of the user the token identifies")
	cmd.Flags().StringVar(&username, "username", "", "username recorded in the token")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
