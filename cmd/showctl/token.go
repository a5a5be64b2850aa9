package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ta25stage/stagelink/internal/api"
)

func newTokenCmd(opts *globalOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:     "token SUBJECT",
		Short:   "Mint a bearer token for the coordinator's status API",
		Example: "showctl token lighting-desk\nshowctl token foh-tablet --ttl 4h",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.API.Auth.JWTSecret == "" {
				return errors.New("api.auth.jwt_secret is not set, the status API is open")
			}
			if !cmd.Flags().Changed("ttl") {
				ttl = cfg.GetTokenTTL()
			}
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got %s", ttl)
			}

			token, err := api.GenerateToken(args[0], cfg.API.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			if opts.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"subject":    args[0],
					"token":      token,
					"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to api.auth.token_ttl)")
	return cmd
}
