package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/service"
	"github.com/jask/taskcards/internal/testdata"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			if _, err := s.openDB(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database up to date: %s\n", s.cfg.Store.Path)
			return nil
		},
	}
}

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Demo    bool
	Sprints int
	Seed    int64
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed [fixture.toml]",
		Short: "Load work items into the local database",
		Long: `Load teams, iterations, work items and links from a TOML fixture, or
generate demo data with --demo. Existing rows with the same keys are replaced.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "generate demo data instead of reading a fixture")
	cmd.Flags().IntVar(&opts.Sprints, "sprints", 4, "number of demo sprints")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 1, "demo random seed")

	return cmd
}

func runSeed(cmd *cobra.Command, opts *SeedOptions, args []string) error {
	if opts.Demo == (len(args) == 1) {
		return errors.New("pass either a fixture file or --demo")
	}
	s, err := openSession(cmd, opts.RootOptions, false)
	if err != nil {
		return err
	}
	defer s.Close()
	db, err := s.openDB()
	if err != nil {
		return err
	}

	ingest := &service.IngestService{DB: db}
	var res service.IngestResult
	if opts.Demo {
		res, err = ingest.Import(cmd.Context(), testdata.Demo(opts.Seed, opts.Sprints))
	} else {
		f, ferr := os.Open(args[0])
		if ferr != nil {
			return ferr
		}
		defer f.Close()
		res, err = ingest.ImportFixture(cmd.Context(), f)
	}
	if err != nil {
		return err
	}

	for _, e := range res.Errors {
		s.log.Warn().Err(e).Msg("skipped fixture row")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d teams, %d iterations, %d work items, %d links",
		res.Teams, res.Iterations, res.WorkItems, res.Links)
	if n := len(res.Errors); n > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d skipped)", n)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every work item, link, team and iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes all local data; pass --yes to confirm")
			}
			s, err := openSession(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			db, err := s.openDB()
			if err != nil {
				return err
			}
			n, err := (&service.MaintenanceService{DB: db}).Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "local data cleared (%d rows)\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
