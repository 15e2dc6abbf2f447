package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voiceclip/internal/detection"
	"voiceclip/internal/interval"
	"voiceclip/internal/notifications"
	"voiceclip/internal/preflight"
	"voiceclip/internal/services"
	"voiceclip/internal/shorts"
	"voiceclip/internal/store"
)

func newShortsCommand(ctx *commandContext) *cobra.Command {
	var timestampsPath string
	var referencePath string
	var outputDir string
	var title string
	var vertical bool
	var noSubtitles bool
	var skipPreflight bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "shorts <video-file>",
		Short: "Cut subtitled short clips where the reference speaker talks",
		Long: "Split the matched segments of a video into clips within the length policy,\n" +
			"transcribe each clip, and render it with burned-in subtitles.\n" +
			"Segments come from --timestamps or, when omitted, from running detection.",
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

			opts, err := shorts.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			if dir := strings.TrimSpace(outputDir); dir != "" {
				opts.OutputDir = dir
			}
			if cmd.Flags().Changed("vertical") {
				opts.Vertical = vertical
			}
			if opts.Vertical {
				opts.Subtitles.Style = opts.Subtitles.Style.Vertical()
			}
			opts.SkipSubtitles = noSubtitles
			opts.Title = strings.TrimSpace(title)

			if !skipPreflight {
				pre := preflight.Options{Transcription: !noSubtitles, Reference: timestampsPath == "" && referencePath == ""}
				if err := runPreflight(cmd, cfg, pre); err != nil {
					return err
				}
			}

			pipeline := &shorts.Pipeline{
				Renderer: ctx.clipRenderer(cfg, logger),
				Options:  opts,
				Logger:   logger,
			}
			if !noSubtitles {
				if pipeline.Transcriber, err = ctx.wordTranscriber(cfg, logger); err != nil {
					return err
				}
			}

			run := store.NewRun(store.KindShorts, time.Now())
			runCtx := services.WithRunID(services.WithSourceID(cmd.Context(), filepath.Base(source)), run.ID)

			var manifest shorts.Manifest
			err = withWorkspaceLock(cfg, func() error {
				segments, err := ctx.shortsSegments(runCtx, cmd, source, timestampsPath, referencePath)
				if err != nil {
					recordRun(cmd.Context(), cfg, logger, run, []store.Entry{shortsEntry(source, shorts.Manifest{}, err)})
					return err
				}
				var runErr error
				manifest, runErr = pipeline.Run(runCtx, source, segments)
				recordRun(cmd.Context(), cfg, logger, run, []store.Entry{shortsEntry(source, manifest, runErr)})
				if runErr == nil && len(manifest.Clips) > 0 {
					notify(logger, func() error {
						return ctx.notifications(cfg).NotifyShortsCompleted(context.WithoutCancel(cmd.Context()), notifications.ShortsNotice{
							Source:   filepath.Base(source),
							Rendered: manifest.Succeeded(),
							Failed:   manifest.Failed(),
							Duration: manifest.RenderedDuration(),
						})
					})
				}
				return runErr
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, manifest)
			}
			printManifest(cmd, manifest, shorts.ManifestPath(opts.OutputDir, source))
			if len(manifest.Clips) > 0 && manifest.Succeeded() == 0 {
				return fmt.Errorf("all %d clips failed", len(manifest.Clips))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&timestampsPath, "timestamps", "t", "", "Timestamp list of segments (default: run detection)")
	cmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Reference fingerprint for detection (default: paths.reference_path)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for rendered shorts (default: <output_dir>/shorts)")
	cmd.Flags().StringVar(&title, "title", "", "Title text drawn on every clip")
	cmd.Flags().BoolVar(&vertical, "vertical", false, "Crop to a 9:16 portrait frame (default: render.vertical)")
	cmd.Flags().BoolVar(&noSubtitles, "no-subtitles", false, "Render without transcription or subtitles")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip directory and tool checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the manifest as JSON")
	return cmd
}

// shortsSegments reads the timestamp list when given and otherwise detects
// the reference speaker in source.
func (c *commandContext) shortsSegments(ctx context.Context, cmd *cobra.Command, source, timestampsPath, referencePath string) ([]interval.Interval, error) {
	cfg, logger, err := c.setup()
	if err != nil {
		return nil, err
	}
	if path := strings.TrimSpace(timestampsPath); path != "" {
		resolved, err := resolveInputFile(path)
		if err != nil {
			return nil, err
		}
		return shorts.LoadSegments(resolved, logger)
	}
	refPath := strings.TrimSpace(referencePath)
	if refPath == "" {
		refPath = cfg.Paths.ReferencePath
	}
	report, err := c.detectFile(ctx, cfg, logger, source, refPath, detection.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Detected %d segments (%s matched)\n", len(report.Segments), interval.FormatClock(report.MatchedDuration))
	return report.Intervals(), nil
}

func printManifest(cmd *cobra.Command, manifest shorts.Manifest, manifestPath string) {
	out := cmd.OutOrStdout()
	if len(manifest.Clips) == 0 {
		fmt.Fprintln(out, "No clips to render")
		return
	}
	rows := make([][]string, 0, len(manifest.Clips))
	for _, c := range manifest.Clips {
		result := filepath.Base(c.Output)
		if c.Error != "" {
			result = "failed: " + c.Error
		}
		rows = append(rows, []string{
			strconv.Itoa(c.Number),
			interval.FormatClock(c.Start),
			interval.FormatClock(c.End),
			formatSeconds(c.Duration()),
			strconv.Itoa(c.Groups),
			result,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{right("#"), left("Start"), left("End"), right("Length"), right("Subtitles"), left("Output")},
		rows,
	))
	fmt.Fprintf(out, "Rendered %d of %d clips (%s) in %s\n",
		manifest.Succeeded(), len(manifest.Clips), interval.FormatClock(manifest.RenderedDuration()), formatElapsed(manifest.Elapsed))
	fmt.Fprintf(out, "Manifest: %s\n", manifestPath)
}
