package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/interval"
	"voiceclip/internal/services"
	"voiceclip/internal/subtitles"
	"voiceclip/internal/transcribe"
)

func newSubtitlesCommand(ctx *commandContext) *cobra.Command {
	var startClock, endClock string
	var wordsPath string
	var outputPath string
	var format string
	var wordsPerGroup int

	cmd := &cobra.Command{
		Use:   "subtitles <media-file>",
		Short: "Generate grouped subtitles for one clip",
		Long: "Transcribe the span between --start and --end and write grouped subtitles.\n" +
			"With --words, group an existing WhisperX JSON file instead of transcribing.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			settings, err := subtitles.SettingsFromConfig(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				if settings.Format, err = subtitles.ParseFormat(format); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("words-per-group") {
				settings.Options.WordsPerGroup = wordsPerGroup
			}

			var (
				words []subtitles.Word
				stem  string
			)
			switch {
			case strings.TrimSpace(wordsPath) != "":
				words, err = transcribe.LoadWords(wordsPath)
				if err != nil {
					return err
				}
				stem = fileutil.BaseName(wordsPath)
			case len(args) == 1:
				source, err := resolveInputFile(args[0])
				if err != nil {
					return err
				}
				span, err := parseSpan(startClock, endClock)
				if err != nil {
					return err
				}
				transcriber, err := ctx.wordTranscriber(cfg, logger)
				if err != nil {
					return err
				}
				runCtx := services.WithSourceID(cmd.Context(), filepath.Base(source))
				words, err = transcriber.TranscribeWords(runCtx, source, span)
				if err != nil {
					return err
				}
				stem = fmt.Sprintf("%s_%ds-%ds", fileutil.BaseName(source), int(span.Start), int(span.End))
			default:
				return errors.New("a media file or --words is required")
			}

			groups := settings.Build(words)
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = filepath.Join(cfg.Paths.OutputDir, stem+settings.Format.Ext())
			}
			if err := settings.WriteFile(target, groups); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d subtitle events from %d words to %s\n", len(groups), len(words), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&startClock, "start", "", "Clip start (HH:MM:SS or seconds)")
	cmd.Flags().StringVar(&endClock, "end", "", "Clip end (HH:MM:SS or seconds)")
	cmd.Flags().StringVar(&wordsPath, "words", "", "Group words from an existing WhisperX JSON file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Subtitle destination (default: <output_dir>/<name>_<start>-<end>.<format>)")
	cmd.Flags().StringVar(&format, "format", "", "Subtitle format: ass or srt (default: subtitles.format)")
	cmd.Flags().IntVar(&wordsPerGroup, "words-per-group", subtitles.DefaultWordsPerGroup, "Words per subtitle event (default: subtitles.words_per_group)")
	return cmd
}

// parseSpan accepts clock or plain-second values for a clip range.
func parseSpan(startValue, endValue string) (interval.Interval, error) {
	if strings.TrimSpace(startValue) == "" || strings.TrimSpace(endValue) == "" {
		return interval.Interval{}, errors.New("--start and --end are required when transcribing")
	}
	start, err := parseOffset(startValue)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("--start: %w", err)
	}
	end, err := parseOffset(endValue)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("--end: %w", err)
	}
	return interval.New(start, end)
}

func parseOffset(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, ":") {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil {
			return seconds, nil
		}
	}
	return interval.ParseClock(value)
}
