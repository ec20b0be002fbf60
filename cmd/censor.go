package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/countercurse/countercurse/internal/bootstrap"
	"github.com/countercurse/countercurse/internal/job"
)

// censoredSuffix is appended to the input's name when -o is not given.
const censoredSuffix = "_censored"

var errOutputWithBatch = errors.New("--output cannot be combined with several inputs")

type censorFlags struct {
	output   string
	tier     string
	passes   int
	parallel int
	mask     string
	pushToS3 bool
}

func newCensorCmd(g *globalFlags) *cobra.Command {
	f := &censorFlags{}

	c := &cobra.Command{
		Use:   "censor <video>...",
		Short: "Censor one or more videos",
		Long: `Censor replaces every lexicon word spoken in each video with a tone and
writes the result next to the input as <name>_censored.<ext>, or under
OUTPUT_DIR when it is set.`,
		Example: `  countercurse censor interview.mp4
  countercurse censor -t strict -p 3 -o clean.mp4 interview.mp4
  countercurse censor -j 4 episodes/*.mkv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.output != "" && len(args) > 1 {
				return errOutputWithBatch
			}
			return runCensor(cmd, g, f, args)
		},
	}

	c.Flags().StringVarP(&f.output, "output", "o", "", "output path (default: <input>_censored.<ext>)")
	c.Flags().StringVarP(&f.tier, "tier", "t", "", "lexicon tier: minor, moderate or strict (default: DEFAULT_TIER)")
	c.Flags().IntVarP(&f.passes, "passes", "p", 0, "number of censoring passes (default: DEFAULT_PASSES)")
	c.Flags().IntVarP(&f.parallel, "jobs", "j", 1, "videos to censor concurrently")
	c.Flags().StringVar(&f.mask, "mask", "", "masking signal: tone or silence (default: MASK)")
	c.Flags().BoolVar(&f.pushToS3, "s3", false, "upload each result to S3_BUCKET")
	return c
}

func runCensor(cmd *cobra.Command, g *globalFlags, f *censorFlags, inputs []string) error {
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	if f.mask != "" {
		cfg.Mask = strings.ToLower(f.mask)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--mask: %w", err)
		}
	}

	ctx := cmd.Context()
	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	results := make([]*job.Result, len(inputs))
	errs := make([]error, len(inputs))

	var grp errgroup.Group
	grp.SetLimit(max(f.parallel, 1))
	for i, input := range inputs {
		grp.Go(func() error {
			output := f.output
			if output == "" {
				output = defaultOutputName(input, cfg.OutputDir != "")
			}
			results[i], errs[i] = deps.CensorService.CensorVideo(ctx, job.CensorInput{
				InputPath:  input,
				OutputName: output,
				Tier:       f.tier,
				Passes:     f.passes,
				PushToS3:   f.pushToS3,
			})
			if errs[i] != nil {
				logger.Error("censoring failed",
					slog.String("input", input),
					slog.String("error", errs[i].Error()),
				)
			}
			return nil
		})
	}
	_ = grp.Wait()

	if !g.quiet {
		printSummary(cmd.OutOrStdout(), inputs, results, errs)
	}
	return errors.Join(errs...)
}

// defaultOutputName derives "<stem>_censored<ext>" from input. The name is
// bare when an output directory will be prepended, otherwise it sits next
// to the input.
func defaultOutputName(input string, hasOutputDir bool) string {
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + censoredSuffix + ext
	if hasOutputDir {
		return name
	}
	return filepath.Join(filepath.Dir(input), name)
}

func printSummary(w io.Writer, inputs []string, results []*job.Result, errs []error) {
	for i, input := range inputs {
		res := results[i]
		switch {
		case res == nil:
			fmt.Fprintf(w, "%s: not started: %v\n", input, errs[i])
		case res.Success():
			fmt.Fprintf(w, "%s: %s -> %s (censored per pass: %v)\n", input, res.Status, res.OutputPath, res.CensoredPerPass())
			if res.VideoURL != "" {
				fmt.Fprintf(w, "  uploaded to %s\n", res.VideoURL)
			}
		case res.Status == job.StatusNoOffensesFound:
			fmt.Fprintf(w, "%s: %s, nothing to censor\n", input, res.Status)
		default:
			fmt.Fprintf(w, "%s: %s (censored per pass: %v): %v\n", input, res.Status, res.CensoredPerPass(), errs[i])
		}
	}
}
