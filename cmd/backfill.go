package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fetches and archives detail pages for notices that have none",
		Long: `Walks the catalogue's backlog of notices with no archived detail page,
fetches each notice's detail URL, archives the response verbatim, and
links the archived copy to the catalogue record. Error responses are
archived too so the backlog never re-fetches a permanently missing page
without a record of what came back.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.pipeline.RunDetailBackfill(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("run backfill: %w", err)
			}
			logReport(a.logger, "backfill", report)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum notices to backfill (0 = no limit)")

	return cmd
}
