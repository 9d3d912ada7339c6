package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/topolab/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Inspect the configured compute agents",
}

var computeListCmd = &cobra.Command{
	Use:   "list",
	Short: "Contact every configured compute and report its status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		ctl, cleanup, err := buildController(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tENDPOINT\tVERSION\tSTATUS")
		for _, c := range ctl.Computes() {
			status := "disconnected"
			if c.Connected() {
				status = "connected"
			}
			version := c.Version()
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID(), c.Connection().BaseURL(), version, tui.Status(status))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(computeCmd)
	computeCmd.AddCommand(computeListCmd)
}
