package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newScrapeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Fetch review profiles for the configured school",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			reviews, err := svc.Scrape(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Snapshot", "Names", "Records", "Path"},
				[][]string{{"reviews", strconv.Itoa(len(reviews)), strconv.Itoa(reviews.Count()), c.cfg.ReviewsPath}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
