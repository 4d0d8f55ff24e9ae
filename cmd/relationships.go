package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hurou927/pg-relsub/internal/output"
	"github.com/hurou927/pg-relsub/internal/relation"
)

var (
	relFormat      string
	relCardinality []string
)

var relationshipsCmd = &cobra.Command{
	Use:     "relationships",
	Aliases: []string{"rels"},
	Short:   "List inferred relationships",
	Long:    `Lists every relationship touching the configured schemas, grouped by source table then constraint name. Use --cardinality to narrow the list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := output.ParseFormat(relFormat, output.FormatText, output.FormatJSON, output.FormatYAML)
		if err != nil {
			return err
		}
		var cards []relation.Cardinality
		for _, s := range relCardinality {
			c, err := relation.ParseCardinality(s)
			if err != nil {
				return err
			}
			cards = append(cards, c)
		}

		cat, pool, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		if pool != nil {
			defer pool.Close()
		}

		g, err := loadGraph(ctx, cat)
		if err != nil {
			return err
		}

		return output.NewWriter(cmd.OutOrStdout(), format).WriteRelationships(g.Relationships(cards...))
	},
}

func init() {
	relationshipsCmd.Flags().StringVar(&relFormat, "format", "text", "output format: text, json or yaml")
	relationshipsCmd.Flags().StringSliceVar(&relCardinality, "cardinality", nil, "only show these cardinalities (many_to_one, one_to_many, one_to_one, many_to_many)")
	rootCmd.AddCommand(relationshipsCmd)
}
