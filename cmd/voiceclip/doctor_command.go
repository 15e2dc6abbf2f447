package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voiceclip/internal/config"
	"voiceclip/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var sendTest bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, external tools and the reference fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{Reference: true, Transcription: true})
			if jsonOutput {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				printPreflight(cmd, results)
			}
			if sendTest {
				if err := ctx.notifications(cfg).TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("test notification: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&sendTest, "notify", false, "Send a test notification")
	return cmd
}

// runPreflight checks the directories and tools a run needs and prints the
// failures.
func runPreflight(cmd *cobra.Command, cfg *config.Config, opts preflight.Options) error {
	failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg, opts))
	if len(failed) == 0 {
		return nil
	}
	printPreflight(cmd, failed)
	return errors.New("preflight failed; run voiceclip doctor for details or pass --skip-preflight")
}

func printPreflight(cmd *cobra.Command, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
			if r.Optional {
				status = "warn"
			}
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]column{left("Check"), left("Status"), left("Detail")}, rows,
	))
}
