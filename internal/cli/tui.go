package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/prefs"
	"github.com/jask/taskcards/internal/report"
	"github.com/jask/taskcards/internal/tui"
)

// NewTUICommand creates the tui command.
func NewTUICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive browser (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, rootOpts)
		},
	}
}

func runTUI(cmd *cobra.Command, opts *RootOptions) error {
	s, err := openSession(cmd, opts, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	co, backend, err := s.newCoalescer(ctx)
	if err != nil {
		return err
	}

	restore, err := prefs.LoadSelection()
	if err != nil {
		s.log.Warn().Err(err).Msg("load saved selection")
	}
	outDir, err := os.Getwd()
	if err != nil {
		return err
	}

	s.log.Info().Str("backend", s.cfg.Store.Backend).Msg("starting tui")
	app := tui.New(ctx, tui.Deps{
		Catalog:       backend,
		Coalescer:     co,
		Reports:       report.Builtin(),
		UI:            s.cfg.UI,
		Log:           s.log.With().Str("component", "tui").Logger(),
		Restore:       restore,
		SaveSelection: prefs.SaveSelection,
		OutDir:        outDir,
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
