package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jask/taskcards/internal/cards"
	"github.com/jask/taskcards/internal/dispatch"
	"github.com/jask/taskcards/internal/report"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// NewIterationsCommand creates the iterations command.
func NewIterationsCommand(rootOpts *RootOptions) *cobra.Command {
	var teams bool
	cmd := &cobra.Command{
		Use:   "iterations",
		Short: "List iteration paths, or teams and their current iteration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			b, err := s.openBackend()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if teams {
				list, err := b.Teams(cmd.Context())
				if err != nil {
					return err
				}
				width := 4
				for _, t := range list {
					width = max(width, len(t.Name))
				}
				for _, t := range list {
					cur := t.CurrentIteration
					if cur == "" {
						cur = "-"
					}
					fmt.Fprintf(out, "%-*s  %s\n", width, t.Name, cur)
				}
				return nil
			}
			paths, err := b.Iterations(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&teams, "teams", false, "list teams with their current iteration")
	return cmd
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <iteration-path>",
		Short: "Print the work items of an iteration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := fetchOnce(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			printItems(cmd.OutOrStdout(), d.Items())
			return nil
		},
	}
}

// CardsOptions holds flags for the cards command.
type CardsOptions struct {
	*RootOptions
	Report string
}

// NewCardsCommand creates the cards command.
func NewCardsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CardsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cards <iteration-path>",
		Short: "Render every work item of an iteration through a report",
		Long: `Render every work item of an iteration through a report. Without --report
the first report supporting ui.process_template is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts.RootOptions, false)
			if err != nil {
				return err
			}
			defer s.Close()
			rep, err := pickReport(report.Builtin(), opts.Report, s.cfg.UI.ProcessTemplate)
			if err != nil {
				return err
			}
			d, err := fetchOnce(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.Render(d.Items()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Report, "report", "r", "", "report name, e.g. \"Sprint summary\"")
	return cmd
}

func pickReport(reg *report.Registry, name, template string) (report.Report, error) {
	if name != "" {
		rep, ok := reg.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown report %q", name)
		}
		return rep, nil
	}
	supported := reg.Supported(template)
	if len(supported) == 0 {
		return nil, fmt.Errorf("no report supports process template %q; pass --report", template)
	}
	return supported[0], nil
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Fetch iteration paths read line by line from stdin",
		Long: `Read iteration paths from stdin, one per line, and print the work items of
each as it is fetched. Paths arriving while a fetch is running are coalesced:
only the latest one is fetched next.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer s.Close()
			return runWatch(cmd.Context(), s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runWatch(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	co, _, err := s.newCoalescer(ctx)
	if err != nil {
		return err
	}
	co.Observe(dispatch.Observer{
		DisplayUpdated: func(d *dispatch.Display) {
			fmt.Fprintf(out, "== %s (%d items)\n", d.Key(), d.Len())
			printItems(out, d.Items())
		},
		FetchFailed: func(e *dispatch.FetchError) {
			fmt.Fprintf(out, "!! %s: %s: %v\n", e.Key, e.Kind, e.Err)
		},
	})

	loop := dispatch.NewLoop(co)
	go func() {
		defer loop.Close()
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			path := strings.TrimSpace(sc.Text())
			if path == "" {
				continue
			}
			if err := wiql.ValidatePath(path); err != nil {
				s.log.Warn().Err(err).Str("path", path).Msg("skipped")
				continue
			}
			loop.Submit(path)
		}
		if err := sc.Err(); err != nil {
			s.log.Error().Err(err).Msg("read stdin")
		}
	}()
	return loop.Run(ctx)
}

// fetchOnce runs a single fetch cycle for key through the dispatcher.
func fetchOnce(ctx context.Context, s *session, key string) (*dispatch.Display, error) {
	if err := wiql.ValidatePath(key); err != nil {
		return nil, err
	}
	co, _, err := s.newCoalescer(ctx)
	if err != nil {
		return nil, err
	}
	var failure *dispatch.FetchError
	co.Observe(dispatch.Observer{
		FetchFailed: func(e *dispatch.FetchError) { failure = e },
	})

	loop := dispatch.NewLoop(co)
	loop.Submit(key)
	loop.Close()
	if err := loop.Run(ctx); err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return co.Display(), nil
}

func printItems(w io.Writer, items []workitem.WorkItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no work items")
		return
	}
	fmt.Fprintf(w, "%-8s  %-12s  %-10s  %5s  %-18s  %s\n", "ID", "TYPE", "STATE", "DAYS", "ASSIGNED TO", "TITLE")
	for _, it := range items {
		owner := it.AssignedTo()
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(w, "%-8s  %-12s  %-10s  %5s  %-18s  %s\n",
			strconv.Itoa(it.ID), it.Type, it.State, cards.Estimate(it), owner, it.Title())
	}
}

