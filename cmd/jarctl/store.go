package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jarfeed/internal/adapter/repo"
	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
)

const storeTimeout = 30 * time.Second

// withStore opens the store named by DATABASE_URL for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store domain.DonationStore) error) error {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()

	store, err := repo.Open(ctx, cfg, infra.NopLogger())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show donation totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store domain.DonationStore) error {
				stats, err := store.AggregateStats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if jsonOutput(cmd) {
					return writeJSON(out, map[string]any{
						"totalAmount":    json.Number(stats.TotalAmount.String()),
						"totalCount":     stats.TotalCount,
						"uniqueDonors":   stats.UniqueDonors,
						"latestDonation": stats.LatestDonation,
					})
				}
				fmt.Fprintf(out, "Total:   %s\n", stats.TotalAmount.StringFixed(2))
				fmt.Fprintf(out, "Count:   %d\n", stats.TotalCount)
				fmt.Fprintf(out, "Donors:  %d\n", stats.UniqueDonors)
				if d := stats.LatestDonation; d != nil {
					fmt.Fprintf(out, "Latest:  %s %s (%s)\n", d.Name, d.Amount.StringFixed(2), d.Time().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func topCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "List donors by total amount",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, store domain.DonationStore) error {
				donors, err := store.TopDonors(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), donors)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tNAME\tAMOUNT")
				for i, d := range donors {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, d.Name, d.Amount.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Maximum donors")
	return cmd
}

func recentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest donations",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(cmd, func(ctx context.Context, store domain.DonationStore) error {
				donations, err := store.ListRecent(ctx, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return writeJSON(cmd.OutOrStdout(), donations)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tNAME\tAMOUNT\tCOMMENT")
				for _, d := range donations {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Time().Format(time.RFC3339), d.Name, d.Amount.StringFixed(2), d.Comment)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 10, "Maximum donations")
	return cmd
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
