package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"voiceclip/internal/interval"
	"voiceclip/internal/store"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage recorded runs",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

// withStore opens the run history for the duration of fn.
func (c *commandContext) withStore(fn func(*store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						shortID(run.ID),
						string(run.Kind),
						run.StartedAt.Local().Format("2006-01-02 15:04"),
						strconv.Itoa(run.Succeeded),
						strconv.Itoa(run.Failed),
						interval.FormatClock(run.MatchedDuration),
						formatElapsed(run.Elapsed()),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{left("ID"), left("Kind"), left("Started"), right("OK"), right("Failed"), right("Matched"), right("Elapsed")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type runDetail struct {
	Run     store.Run     `json:"run"`
	Entries []store.Entry `json:"entries"`
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the sources of one run (an ID prefix is enough)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				run, err := st.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries, err := st.Entries(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runDetail{Run: run, Entries: entries})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s (%s) started %s\n", run.ID, run.Kind, run.StartedAt.Local().Format(time.RFC3339))
				fmt.Fprintf(out, "%d sources, %d succeeded, %d failed, matched %s of %s\n",
					run.Total, run.Succeeded, run.Failed, interval.FormatClock(run.MatchedDuration), interval.FormatClock(run.TotalDuration))
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					detail := strconv.Itoa(len(e.Segments)) + " segments"
					if e.Error != "" {
						detail = e.Error
					}
					rows = append(rows, []string{
						e.SourceID,
						e.Status,
						interval.FormatClock(e.MatchedDuration),
						strconv.Itoa(len(e.Outputs)),
						detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{left("Source"), left("Status"), right("Matched"), right("Outputs"), left("Detail")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than a duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return ctx.withStore(func(st *store.Store) error {
				removed, err := st.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age threshold, e.g. 72h")
	return cmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the run history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if errors.Is(err, store.ErrSchemaMismatch) {
				if removeErr := store.RemoveDatabase(cfg.StateDBPath()); removeErr != nil {
					return removeErr
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History database removed")
				return nil
			}
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared")
			return nil
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
