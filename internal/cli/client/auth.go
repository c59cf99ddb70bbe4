package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/newsweave/internal/cli"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage daemon credentials",
		Long:  "Login, logout, and check the credentials used to reach newsweaved",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

// AuthLoginCmd creates the auth login command
func AuthLoginCmd() *cobra.Command {
	var apiToken string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the API token",
		Long:  "Store the API token and URL in the global config (~/.config/newsweave/config.json)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiToken == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter API token: ")
				token, err := readLine(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read API token: %w", err)
				}
				apiToken = token
			}
			if apiToken == "" {
				return fmt.Errorf("API token cannot be empty")
			}

			if err := SaveGlobalConfig(&GlobalConfig{APIToken: apiToken, APIURL: apiURL}); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged in")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiToken, "api-token", "", "API token (NEWSWEAVE_API_TOKEN of the daemon)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API URL")

	return cmd
}

// AuthLogoutCmd creates the auth logout command
func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove stored credentials from the global config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return fmt.Errorf("failed to logout: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")
			return nil
		},
	}
}

// AuthStatus is the JSON shape of auth status.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Source        string `json:"source"`
	APIToken      string `json:"api_token,omitempty"`
	APIURL        string `json:"api_url"`
}

// AuthStatusCmd creates the auth status command
func AuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Display where the API token comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.OutputFormat(cmd)
			if err != nil {
				return err
			}
			source, token, url, err := ResolveCredentials("", "")
			if err != nil {
				return err
			}

			status := AuthStatus{Authenticated: source != SourceNone, Source: string(source), APIURL: url}
			if status.Authenticated {
				status.APIToken = maskToken(token)
			}

			out := cmd.OutOrStdout()
			if format == cli.OutputJSON {
				return cli.PrintJSON(out, status)
			}
			if !status.Authenticated {
				fmt.Fprintln(out, "Not authenticated")
				fmt.Fprintln(out, "Run 'newsweave auth login' to authenticate")
				return nil
			}
			fmt.Fprintf(out, "Authenticated: yes\n")
			fmt.Fprintf(out, "Source: %s\n", status.Source)
			fmt.Fprintf(out, "API Token: %s\n", status.APIToken)
			fmt.Fprintf(out, "API URL: %s\n", status.APIURL)
			return nil
		},
	}

	cli.AddOutputFlag(cmd)

	return cmd
}

func readLine(r io.Reader) (string, error) {
	if r == nil {
		r = os.Stdin
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func maskToken(token string) string {
	if len(token) < 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
