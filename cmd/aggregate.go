package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAggregateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Build the ratings snapshot from section listings and grade CSVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			ratings, err := svc.Aggregate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Snapshot", "Names", "Records", "Path"},
				[][]string{{"ratings", strconv.Itoa(len(ratings)), strconv.Itoa(ratings.Count()), c.cfg.RatingsPath}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}
