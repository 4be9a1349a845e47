package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/okian/profmatch/internal/domain/matching"
)

func newReconcileCmd(c *cli) *cobra.Command {
	var showRejections bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match the ratings snapshot against the reviews snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := c.service(cmd)
			if err != nil {
				return err
			}
			defer svc.Stop()

			res, err := svc.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, summaryTable(res))
			if showRejections && len(res.Rejections) > 0 {
				fmt.Fprintln(out, rejectionTable(res.Rejections))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRejections, "rejections", false, "list rejected pairings")
	return cmd
}

func summaryTable(res *matching.Result) string {
	c := res.Counts
	rows := [][]string{
		{"run", res.RunID},
		{"threshold", strconv.Itoa(res.Threshold)},
		{"override", strconv.Itoa(c.Override)},
		{"direct", strconv.Itoa(c.Direct)},
		{"fuzzy", strconv.Itoa(c.Fuzzy)},
		{"matched", strconv.Itoa(c.Matched())},
		{"rejected", strconv.Itoa(c.Rejected)},
		{"unmatched ratings", strconv.Itoa(c.UnmatchedRatings)},
		{"unmatched reviews", strconv.Itoa(c.UnmatchedReviews)},
		{"pairs evaluated", strconv.Itoa(res.PairsEvaluated)},
	}
	durations := res.DurationsMS()
	for _, phase := range []matching.Phase{matching.PhaseOverrides, matching.PhaseExact, matching.PhaseFuzzy} {
		if ms, ok := durations[phase]; ok {
			rows = append(rows, []string{string(phase) + " ms", strconv.FormatFloat(ms, 'f', 2, 64)})
		}
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func rejectionTable(rejections []matching.Rejection) string {
	rows := make([][]string, 0, len(rejections))
	for _, r := range rejections {
		score := ""
		if r.Score > 0 {
			score = strconv.Itoa(r.Score)
		}
		rows = append(rows, []string{string(r.Phase), r.RatingName, r.ReviewName, r.Reason, score})
	}
	return renderTable(
		[]string{"Phase", "Ratings name", "Review name", "Reason", "Score"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}
