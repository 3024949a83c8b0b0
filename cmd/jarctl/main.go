package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jarctl",
		Short:         "Inspect jars and the donation store",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	rootCmd.AddCommand(jarsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(topCmd())
	rootCmd.AddCommand(recentCmd())
	return rootCmd
}
