/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>
*/

package cmd

import (
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/universal-claude-router/ucr/internal/credential"
	"github.com/universal-claude-router/ucr/internal/logging"
)

var (
	authDeviceCodeURL string
	authTokenURL      string
	authClientID      string
	authScope         string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored provider credentials.",
}

var authLoginCmd = &cobra.Command{
	Use:   "login <provider-id>",
	Short: "Run the OAuth device-code flow for a provider and persist the resulting credential.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		providerID := args[0]
		if authDeviceCodeURL == "" || authTokenURL == "" {
			return fmt.Errorf("--device-code-url and --token-url are required")
		}

		path, err := credential.DefaultPath()
		if err != nil {
			return err
		}
		store, err := credential.Open(path)
		if err != nil {
			return err
		}

		flow := credential.NewOAuthFlow(resty.New(), store, logging.Nop())
		eps := credential.DeviceFlowEndpoints{
			DeviceCodeURL: authDeviceCodeURL,
			TokenURL:      authTokenURL,
			ClientID:      authClientID,
			Scope:         authScope,
		}

		prompt := func(verificationURI, userCode string) {
			fmt.Printf("To authorize %s, visit %s and enter code: %s\n", providerID, verificationURI, userCode)
		}

		if err := flow.Login(cmd.Context(), providerID, eps, prompt); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		fmt.Printf("%s authorized.\n", providerID)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <provider-id>",
	Short: "Remove a stored credential.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := credential.DefaultPath()
		if err != nil {
			return err
		}
		store, err := credential.Open(path)
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("%s credential removed.\n", args[0])
		return nil
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&authDeviceCodeURL, "device-code-url", "", "OAuth device authorization endpoint")
	authLoginCmd.Flags().StringVar(&authTokenURL, "token-url", "", "OAuth token endpoint")
	authLoginCmd.Flags().StringVar(&authClientID, "client-id", "", "OAuth client id (defaults to the provider's well-known public client id)")
	authLoginCmd.Flags().StringVar(&authScope, "scope", "", "OAuth scope")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
