package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"jarfeed/internal/domain"
	"jarfeed/internal/infra"
	"jarfeed/internal/monobank"
)

func jarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jars",
		Short: "List jars from one client-info call",
		Long: `List every jar on the account with balance, goal and progress.

Each run makes a fresh client-info request. The bank allows one such request
per minute per token, and that budget is shared with a running jarfeed server
using the same MONO_TOKEN: running this command may make the server's next
cache refresh fail with 429 and serve stale jar data until the minute passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.BankEnabled() {
				return fmt.Errorf("MONO_TOKEN is not set: %w", domain.ErrNotConfigured)
			}
			client := monobank.NewClient(monobank.Options{BaseURL: cfg.MonoBaseURL, Token: cfg.MonoToken, Timeout: cfg.BankTimeout})
			return listJars(cmd, monobank.NewClientInfoCache(client, cfg.ClientInfoTTL, infra.NopLogger()), cfg.JarTitle, cfg.JarID)
		},
	}
}

type snapshotGetter interface {
	Get(ctx context.Context) (monobank.Snapshot, error)
}

func listJars(cmd *cobra.Command, cache snapshotGetter, title, id string) error {
	snap, err := cache.Get(cmd.Context())
	if err != nil {
		return err
	}
	target, findErr := snap.Info.FindJar(id, title)

	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), snap.Info.Jars)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tTITLE\tBALANCE\tGOAL\tPROGRESS")
	for _, j := range snap.Info.Jars {
		mark := ""
		if findErr == nil && j.ID == target.ID {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s%%\n", mark, j.ID, j.Title,
			j.BalanceUnits().StringFixed(2), j.GoalUnits().StringFixed(2), j.Progress())
	}
	return tw.Flush()
}
