package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"voiceclip/internal/audio"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
	"voiceclip/internal/voiceprint"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "enroll <sample-file>...",
		Short: "Build the reference fingerprint from recordings of the target speaker",
		Long: "Decode each sample, embed it with the configured speaker model and store the\n" +
			"averaged embedding as the reference fingerprint. Samples that fail are skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outputPath)
			if target == "" {
				target = cfg.Paths.ReferencePath
			}
			if target == "" {
				target = filepath.Join(cfg.Paths.StateDir, "reference.json")
			}
			if !overwrite {
				if _, err := voiceprint.LoadReference(target); err == nil {
					return fmt.Errorf("reference already exists at %s (use --overwrite to replace it)", target)
				}
			}
			variant, err := voiceprint.ParseVariant(cfg.Embedding.Variant)
			if err != nil {
				return err
			}
			factory, err := ctx.embedderFactory(cfg)
			if err != nil {
				return err
			}

			workDir, cleanup, err := audio.NewTaskDir(cfg.Paths.WorkDir, "enroll")
			if err != nil {
				return err
			}
			defer cleanup()

			logger = logging.NewComponentLogger(logger, "enroll")
			decoder := ctx.audioDecoder(cfg)
			var (
				samples []voiceprint.Sample
				skipped []error
			)
			for _, arg := range args {
				path, err := resolveInputFile(arg)
				if err != nil {
					skipped = append(skipped, err)
					continue
				}
				decodeCtx := services.WithStage(services.WithSourceID(cmd.Context(), filepath.Base(path)), "decode")
				timeline, err := decoder.Decode(decodeCtx, path, workDir)
				if err != nil {
					if cmd.Context().Err() != nil {
						return cmd.Context().Err()
					}
					skipped = append(skipped, fmt.Errorf("%s: %w", filepath.Base(path), err))
					continue
				}
				samples = append(samples, voiceprint.Sample{
					Name:       filepath.Base(path),
					Samples:    timeline.Samples,
					SampleRate: timeline.SampleRate,
				})
			}
			if len(samples) == 0 {
				return errors.Join(append([]error{errors.New("no sample could be decoded")}, skipped...)...)
			}

			embedder, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer embedder.Close()

			ref, embedSkipped, err := voiceprint.BuildReference(cmd.Context(), embedder, variant.EmbeddingModel(), samples)
			skipped = append(skipped, embedSkipped...)
			if err != nil {
				return err
			}
			if err := voiceprint.SaveReference(target, ref); err != nil {
				return err
			}
			for _, skip := range skipped {
				logging.WarnWithContext(logger, "enrollment sample skipped", "enroll_sample_skipped",
					logging.Error(skip),
					logging.String(logging.FieldErrorHint, "use a clean recording of the target speaker"),
					logging.String(logging.FieldImpact, "sample not part of the reference"),
				)
			}
			logger.Info("reference enrolled",
				logging.String("path", target),
				logging.String("model", ref.Model),
				logging.Int("samples", len(ref.Sources)),
				logging.Int("dimension", ref.Dimension),
			)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Enrolled %d sample(s) with %s (%d dimensions)\n", len(ref.Sources), ref.Model, ref.Dimension)
			for _, skip := range skipped {
				fmt.Fprintf(out, "Skipped: %s\n", services.Reason(skip))
			}
			fmt.Fprintf(out, "Reference: %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Reference destination (default: paths.reference_path)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing reference")
	return cmd
}
