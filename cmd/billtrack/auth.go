package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"billtrack/internal/cli"
	"billtrack/internal/config"
	gsheet "billtrack/internal/sheets/google"
)

func sheetsAuthCmd() *cobra.Command {
	var port, tokenFile string

	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize Google Sheets access with an OAuth client",
		Long: `Run the OAuth consent flow for the client in GOOGLE_OAUTH_CLIENT_JSON or
GOOGLE_OAUTH_CLIENT_FILE and save the token. Point GOOGLE_OAUTH_TOKEN_FILE at
the saved token to use it instead of a service account.

The redirect URI http://localhost:<port>/callback must be registered on the
client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The token does not exist yet, so the usual validation would fail.
			cli.LoadEnvFile()
			cfg := config.Load()
			if tokenFile == "" {
				tokenFile = cfg.GoogleOAuthTokenFile
			}
			if tokenFile == "" {
				tokenFile = "token.json"
			}

			oauthCfg, err := gsheet.OAuthClient{
				JSON: cfg.GoogleOAuthClientJSON,
				File: cfg.GoogleOAuthClientFile,
			}.Config()
			if err != nil {
				return err
			}

			tok, err := gsheet.Authorize(cmd.Context(), oauthCfg, port, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := gsheet.SaveToken(tokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", tokenFile)
			if tok.RefreshToken == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: no refresh token returned; revoke access and run again if the token stops working.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", gsheet.DefaultRedirectPort, "Local port for the OAuth redirect")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "Where to save the token; defaults to GOOGLE_OAUTH_TOKEN_FILE or token.json")
	return cmd
}
