package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCommand())
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file location",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path())
		},
	})
	return cmd
}

type configInitOptions struct {
	Force   bool
	Backend string
	OrgURL  string
	Project string
	DBPath  string
}

func newConfigInitCommand() *cobra.Command {
	opts := &configInitOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path()
			if _, err := os.Stat(path); err == nil && !opts.Force {
				return fmt.Errorf("%s already exists; pass --force to overwrite", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			cfg := config.Default()
			cfg.Store.Backend = opts.Backend
			if opts.DBPath != "" {
				cfg.Store.Path = opts.DBPath
			}
			cfg.ADO.OrganizationURL = opts.OrgURL
			cfg.ADO.Project = opts.Project
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing file")
	cmd.Flags().StringVar(&opts.Backend, "backend", config.BackendSQLite, "store backend (sqlite|ado)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "sqlite database path")
	cmd.Flags().StringVar(&opts.OrgURL, "org", "", "Azure DevOps organization URL")
	cmd.Flags().StringVar(&opts.Project, "project", "", "Azure DevOps project")
	return cmd
}
