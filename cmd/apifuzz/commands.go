package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/y0f/apifuzz/internal/config"
	"github.com/y0f/apifuzz/internal/fuzzer"
)

var listFuzzersCmd = &cobra.Command{
	Use:   "list-fuzzers",
	Short: "List the available fuzzers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		charSets := config.Defaults().Run.InvisibleChars
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, f := range fuzzer.DefaultRegistry(fuzzer.Env{}, charSets).List() {
			fmt.Fprintf(w, "%s\t%s\n", f.Name(), f.Description())
		}
		return w.Flush()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "apifuzz %s\n", color.New(color.FgGreen, color.Bold).Sprint(version))
	},
}
