package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"voiceclip/internal/clips"
	"voiceclip/internal/interval"
	"voiceclip/internal/shorts"
)

func newClipsCommand(ctx *commandContext) *cobra.Command {
	var minSeconds, maxSeconds, targetSeconds float64
	var absorbMode string
	var outputPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "clips <timestamps-file>",
		Short: "Split a timestamp list into clips that fit the length policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			path, err := resolveInputFile(args[0])
			if err != nil {
				return err
			}
			segments, err := shorts.LoadSegments(path, logger)
			if err != nil {
				return err
			}

			policy, err := clips.PolicyFromConfig(cfg)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("min") {
				policy.Min = minSeconds
			}
			if flags.Changed("max") {
				policy.Max = maxSeconds
			}
			if flags.Changed("target") {
				policy.Target = targetSeconds
			}
			if flags.Changed("absorb") {
				if policy.Absorb, err = clips.ParseAbsorbMode(absorbMode); err != nil {
					return err
				}
			}

			result, err := clips.Splitter{Policy: policy, Logger: logger}.Split(segments)
			if err != nil {
				return err
			}

			if target := strings.TrimSpace(outputPath); target != "" {
				title := fmt.Sprintf("Clips (%gs-%gs, target %gs)", policy.Min, policy.Max, policy.Target)
				if err := interval.WriteTimestampFile(target, title, clips.Intervals(result)); err != nil {
					return err
				}
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printClips(cmd, len(segments), result)
			if outputPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Timestamps: %s\n", outputPath)
			}
			return nil
		},
	}

	defaults := clips.DefaultPolicy()
	cmd.Flags().Float64Var(&minSeconds, "min", defaults.Min, "Minimum clip length in seconds (default: clips.min_seconds)")
	cmd.Flags().Float64Var(&maxSeconds, "max", defaults.Max, "Maximum clip length in seconds (default: clips.max_seconds)")
	cmd.Flags().Float64Var(&targetSeconds, "target", defaults.Target, "Slice length for long segments (default: clips.target_seconds)")
	cmd.Flags().StringVar(&absorbMode, "absorb", defaults.Absorb.String(), "Tail absorption: below or at_or_below")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the clips as a timestamp list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printClips(cmd *cobra.Command, segmentCount int, result []clips.Clip) {
	out := cmd.OutOrStdout()
	if len(result) == 0 {
		fmt.Fprintf(out, "No clips from %d segments\n", segmentCount)
		return
	}
	rows := make([][]string, 0, len(result))
	for _, c := range result {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			interval.FormatClock(c.Start),
			interval.FormatClock(c.End),
			formatSeconds(c.Duration()),
			yesNo(c.Absorbed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{right("#"), left("Start"), left("End"), right("Length"), left("Absorbed")},
		rows,
	))
	fmt.Fprintf(out, "%d clips from %d segments, %s total\n", len(result), segmentCount, interval.FormatClock(clips.Total(result)))
}
