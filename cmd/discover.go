package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDiscoverCmd() *cobra.Command {
	var (
		fromPage int
		pages    int
		archived bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Walks search result pages and registers new notice ids",
		Long: `Fetches a window of search result pages, archives each page verbatim,
and registers every notice identifier not already in the catalogue.
With --archived, re-scans the latest archived copy of each results page
instead of fetching live.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			if archived {
				report, err := a.discovery.FromArchivedListings(cmd.Context(), 0)
				if err != nil {
					return fmt.Errorf("run archived discovery: %w", err)
				}
				logReport(a.logger, "discovery_archived", report)
				return nil
			}

			count := pages
			if count <= 0 {
				count = a.cfg.Pipeline.PageCount
			}
			report, err := a.pipeline.RunDiscovery(cmd.Context(), fromPage, fromPage+count-1)
			if err != nil {
				return fmt.Errorf("run discovery: %w", err)
			}
			logReport(a.logger, "discovery", report)
			return nil
		},
	}

	cmd.Flags().IntVar(&fromPage, "from", 1, "first results page to walk")
	cmd.Flags().IntVar(&pages, "pages", 0, "number of pages to walk (default: pipeline.page_count)")
	cmd.Flags().BoolVar(&archived, "archived", false, "re-scan archived listing pages instead of fetching")

	return cmd
}
