package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extracts structured fields from archived detail pages",
		Long: `Re-reads the newest archived detail page of each notice that has one,
extracts structured fields (title, buyer, dates, value, CPV codes), and
merges them into the catalogue without overwriting data already present.
This job touches no network and can be re-run after extractor changes.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.pipeline.RunExtraction(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("run extraction: %w", err)
			}
			logReport(a.logger, "extraction", report)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notices to extract (0 = no limit)")

	return cmd
}
