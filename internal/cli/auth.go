package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/config"
	"github.com/jask/taskcards/internal/secrets"
)

// NewAuthCommand creates the auth command group.
func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored Azure DevOps personal access token",
	}

	var org, token string
	set := &cobra.Command{
		Use:   "set-token",
		Short: "Store a personal access token for the organization",
		Long: `Store a personal access token for the organization, encrypted in the user
config directory. The token is read from --token or the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := organization(org)
			if err != nil {
				return err
			}
			tok := strings.TrimSpace(token)
			if tok == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given on --token or stdin")
				}
				tok = strings.TrimSpace(line)
			}
			if err := secrets.StoreToken(o, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token stored for %s\n", o)
			return nil
		},
	}
	set.Flags().StringVar(&org, "org", "", "organization URL (default ado.organization_url)")
	set.Flags().StringVar(&token, "token", "", "personal access token")

	var clearOrg string
	clearCmd := &cobra.Command{
		Use:   "clear-token",
		Short: "Delete the stored token for the organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := organization(clearOrg)
			if err != nil {
				return err
			}
			if err := secrets.DeleteToken(o); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token cleared for %s\n", o)
			return nil
		},
	}
	clearCmd.Flags().StringVar(&clearOrg, "org", "", "organization URL (default ado.organization_url)")

	cmd.AddCommand(set, clearCmd)
	return cmd
}

// organization returns flag, falling back to the configured organization.
func organization(flag string) (string, error) {
	if o := strings.TrimSpace(flag); o != "" {
		return o, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.ADO.OrganizationURL == "" {
		return "", errors.New("no organization: pass --org or set ado.organization_url")
	}
	return cfg.ADO.OrganizationURL, nil
}
