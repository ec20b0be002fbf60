package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/countercurse/countercurse/internal/bootstrap"
	"github.com/countercurse/countercurse/internal/lexicon"
)

func newLexiconCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lexicon [tier]",
		Short: "Show the loaded lexicon",
		Long: `Without arguments, lexicon prints how many words each tier holds; an
empty tier usually means its list file is missing. With a tier name it
prints that tier's words, one per line.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"minor", "moderate", "strict"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			lex, err := bootstrap.LoadLexicon(cfg, logger)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				return printTierSizes(cmd.OutOrStdout(), lex)
			}
			tier, err := lexicon.ParseTier(args[0])
			if err != nil {
				return err
			}
			for _, w := range lex.Words(tier) {
				fmt.Fprintln(cmd.OutOrStdout(), w)
			}
			return nil
		},
	}
}

func printTierSizes(w io.Writer, lex *lexicon.Lexicon) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tWORDS\t")
	for _, tier := range lexicon.AllTiers() {
		size := lex.Size(tier)
		note := ""
		if size == 0 {
			note = "empty"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", tier, size, note)
	}
	return tw.Flush()
}
