package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiceclip/internal/audio"
	"voiceclip/internal/config"
	"voiceclip/internal/detection"
	"voiceclip/internal/fileutil"
	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/store"
	"voiceclip/internal/voiceprint"
)

type detectOutput struct {
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	Report     detection.Report `json:"report"`
	Timestamps string           `json:"timestamps,omitempty"`
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var referencePath string
	var timestampsPath string
	var threshold float64
	var top int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "detect <media-file>",
		Short: "Find the reference speaker in one recording",
		Long: "Decode the audio of a media file, score fixed windows against the reference\n" +
			"fingerprint and write the matched spans as a timestamp list.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := resolveInputFile(args[0])
			if err != nil {
				return err
			}
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}

			opts := detection.OptionsFromConfig(cfg)
			if cmd.Flags().Changed("threshold") {
				opts.Consolidate.Threshold = &threshold
			}
			if cmd.Flags().Changed("top") {
				opts.TopMatches = top
			}
			refPath := strings.TrimSpace(referencePath)
			if refPath == "" {
				refPath = cfg.Paths.ReferencePath
			}

			run := store.NewRun(store.KindDetect, time.Now())
			runCtx := services.WithRunID(services.WithSourceID(cmd.Context(), filepath.Base(source)), run.ID)
			started := time.Now()
			report, err := ctx.detectFile(runCtx, cfg, logger, source, refPath, opts)
			if err != nil {
				recordRun(cmd.Context(), cfg, logger, run, []store.Entry{detectEntry(source, report, nil, err, time.Since(started))})
				return fmt.Errorf("detect %s: %w", filepath.Base(source), err)
			}

			target := strings.TrimSpace(timestampsPath)
			if target == "" {
				target = filepath.Join(cfg.Paths.OutputDir, fileutil.BaseName(source)+"_timestamps.txt")
			}
			title := fmt.Sprintf("Matches in %s", filepath.Base(source))
			if err := interval.WriteTimestampFile(target, title, report.Intervals()); err != nil {
				return err
			}
			recordRun(cmd.Context(), cfg, logger, run, []store.Entry{detectEntry(source, report, []string{target}, nil, time.Since(started))})

			if jsonOutput {
				return writeJSON(cmd, detectOutput{RunID: run.ID, Source: source, Report: report, Timestamps: target})
			}
			printDetectReport(cmd, source, report, target, opts.Score.WindowSeconds)
			return nil
		},
	}

	cmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Reference fingerprint (default: paths.reference_path)")
	cmd.Flags().StringVarP(&timestampsPath, "output", "o", "", "Timestamp list destination (default: <output_dir>/<name>_timestamps.txt)")
	cmd.Flags().Float64Var(&threshold, "threshold", detection.DefaultSimilarityThreshold, "Similarity threshold override")
	cmd.Flags().IntVar(&top, "top", 10, "Number of best windows to report")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// detectFile runs decode and detection for one source inside a scratch
// directory that is removed before returning.
func (c *commandContext) detectFile(ctx context.Context, cfg *config.Config, logger *slog.Logger, source, refPath string, opts detection.Options) (detection.Report, error) {
	ref, err := voiceprint.LoadReference(refPath)
	if err != nil {
		return detection.Report{}, err
	}
	factory, err := c.embedderFactory(cfg)
	if err != nil {
		return detection.Report{}, err
	}

	workDir, cleanup, err := audio.NewTaskDir(cfg.Paths.WorkDir, "detect")
	if err != nil {
		return detection.Report{}, err
	}
	defer cleanup()

	timeline, err := c.audioDecoder(cfg).Decode(services.WithStage(ctx, "decode"), source, workDir)
	if err != nil {
		return detection.Report{}, err
	}
	embedder, err := factory(ctx)
	if err != nil {
		return detection.Report{}, err
	}
	defer embedder.Close()

	opts.Score.Logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "detection"))
	return detection.Detect(services.WithStage(ctx, "detection"), timeline, ref, embedder, opts)
}

func printDetectReport(cmd *cobra.Command, source string, report detection.Report, timestamps string, windowSeconds float64) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Source: %s\n", source)
	fmt.Fprintf(out, "Duration: %s  Windows: %d (silent %d, failed %d)\n",
		interval.FormatClock(report.Duration), report.Stats.Windows, report.Stats.Silent, report.Stats.Failed)
	if len(report.Segments) == 0 {
		fmt.Fprintln(out, "No segments matched the reference speaker")
	} else {
		rows := make([][]string, 0, len(report.Segments))
		for i, seg := range report.Segments {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				interval.FormatClock(seg.Start),
				interval.FormatClock(seg.End),
				formatSeconds(seg.Duration()),
				fmt.Sprintf("%d-%d", seg.FirstWindow, seg.LastWindow),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]column{right("#"), left("Start"), left("End"), right("Length"), right("Windows")},
			rows,
		))
		fmt.Fprintf(out, "Matched: %s (%s of the recording)\n",
			interval.FormatClock(report.MatchedDuration), formatPercent(report.MatchedDuration, report.Duration))
	}
	if len(report.Top) > 0 {
		best := report.Top[0]
		fmt.Fprintf(out, "Best window: #%d at %s (similarity %.3f)\n",
			best.Window, interval.FormatClock(float64(best.Window)*windowSeconds), best.Value)
	}
	fmt.Fprintf(out, "Timestamps: %s\n", timestamps)
}
