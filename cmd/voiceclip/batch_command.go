package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiceclip/internal/batch"
	"voiceclip/internal/detection"
	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/notifications"
	"voiceclip/internal/preflight"
	"voiceclip/internal/store"
)

type batchOutput struct {
	Summary    batch.Summary  `json:"summary"`
	Results    []batch.Result `json:"results"`
	ReportText string         `json:"report_text,omitempty"`
	ReportJSON string         `json:"report_json,omitempty"`
	RunLog     string         `json:"run_log,omitempty"`
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var timeoutSeconds int
	var referencePath string
	var reportDir string
	var skipPreflight bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "batch <file-or-directory>...",
		Short: "Detect the reference speaker across many recordings",
		Long: "Run detection over every file argument and every accepted file in directory\n" +
			"arguments. Each source runs in isolation: one failing file never stops the others.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			sources, err := batch.CollectSources(args, cfg.AcceptsExtension)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no media files found (accepted extensions: %s)", strings.Join(cfg.Batch.Extensions, ", "))
			}

			refPath := strings.TrimSpace(referencePath)
			if refPath == "" {
				refPath = cfg.Paths.ReferencePath
			}
			if !skipPreflight {
				if err := runPreflight(cmd, cfg, preflight.Options{}); err != nil {
					return err
				}
			}
			factory, err := ctx.embedderFactory(cfg)
			if err != nil {
				return err
			}

			coordinator := &batch.Coordinator{
				Workers:     cfg.Batch.Workers,
				TaskTimeout: time.Duration(cfg.Batch.TaskTimeoutSeconds) * time.Second,
				WorkDir:     cfg.Paths.WorkDir,
				Embedders:   factory,
				References:  batch.FileReferenceLoader(refPath),
				Decoder:     ctx.audioDecoder(cfg),
				Detection:   detection.OptionsFromConfig(cfg),
				Logger:      logger,
			}
			if cmd.Flags().Changed("workers") {
				coordinator.Workers = workers
			}
			if cmd.Flags().Changed("timeout") {
				coordinator.TaskTimeout = time.Duration(timeoutSeconds) * time.Second
			}

			var out batchOutput
			err = withWorkspaceLock(cfg, func() error {
				run := store.NewRun(store.KindBatch, time.Now())
				coordinator.RunID = run.ID
				base := logger
				if coordinator.Workers > 1 && logging.ParseLevel(cfg.Logging.Level) < slog.LevelInfo {
					base = logging.WithLevelOverride(logger, slog.LevelInfo)
				}
				runLogger, runLogPath, closeRunLog := openRunLog(cfg, base, run.ID)
				defer closeRunLog()
				coordinator.Logger = runLogger
				started := time.Now()

				results := coordinator.Run(cmd.Context(), sources)
				batch.SortBySource(results)
				summary := batch.Summarize(results)
				summary.RunID = run.ID
				summary.Elapsed = time.Since(started)

				dir := strings.TrimSpace(reportDir)
				if dir == "" {
					dir = cfg.Paths.OutputDir
				}
				txtPath, jsonPath, saveErr := batch.SaveReports(dir, summary, results)
				if saveErr != nil {
					logging.WarnWithContext(logger, "batch report not written", "batch_report_failed",
						logging.Error(saveErr),
						logging.String(logging.FieldErrorHint, "check that the output directory is writable"),
						logging.String(logging.FieldImpact, "results only available in history"),
					)
				}
				recordRun(cmd.Context(), cfg, logger, run, batchEntries(results))
				notify(logger, func() error {
					return ctx.notifications(cfg).NotifyBatchCompleted(context.WithoutCancel(cmd.Context()), notifications.BatchNotice{
						RunID:     run.ID,
						Succeeded: summary.Succeeded,
						Failed:    summary.Failed,
						Matched:   summary.MatchedDuration,
						Elapsed:   summary.Elapsed,
					})
				})
				out = batchOutput{Summary: summary, Results: results, ReportText: txtPath, ReportJSON: jsonPath, RunLog: runLogPath}
				return nil
			})
			if err != nil {
				return err
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				printBatchResults(cmd, out)
			}
			if out.Summary.Total > 0 && out.Summary.Failed == out.Summary.Total {
				return fmt.Errorf("all %d sources failed", out.Summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", batch.DefaultWorkers, "Concurrent sources (default: batch.workers)")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout", int(batch.DefaultTaskTimeout/time.Second), "Per-source timeout in seconds (default: batch.task_timeout_seconds)")
	cmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Reference fingerprint (default: paths.reference_path)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "Directory for the batch report files (default: paths.output_dir)")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and tool checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printBatchResults(cmd *cobra.Command, out batchOutput) {
	w := cmd.OutOrStdout()
	rows := make([][]string, 0, len(out.Results))
	for _, r := range out.Results {
		detail := strconv.Itoa(len(r.Segments)) + " segments"
		if r.Status != batch.StatusSuccess {
			detail = r.Error
		}
		rows = append(rows, []string{
			r.SourceID,
			string(r.Status),
			interval.FormatClock(r.TotalDuration),
			interval.FormatClock(r.MatchedDuration),
			formatElapsed(r.Elapsed),
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]column{left("Source"), left("Status"), right("Duration"), right("Matched"), right("Elapsed"), left("Detail")},
		rows,
	))
	s := out.Summary
	fmt.Fprintf(w, "Run %s: %d sources, %d succeeded, %d failed, matched %s in %s\n",
		s.RunID, s.Total, s.Succeeded, s.Failed, interval.FormatClock(s.MatchedDuration), formatElapsed(s.Elapsed))
	if len(s.TopSources) > 0 {
		fmt.Fprintf(w, "Top sources: %s\n", strings.Join(s.TopSources, ", "))
	}
	if out.ReportText != "" {
		fmt.Fprintf(w, "Report: %s\n", out.ReportText)
	}
	if out.RunLog != "" {
		fmt.Fprintf(w, "Run log: %s\n", out.RunLog)
	}
}
