package main

import (
	"fmt"

	"github.com/aretw0/topolab"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of topolab",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "topolab version %s\n", topolab.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
