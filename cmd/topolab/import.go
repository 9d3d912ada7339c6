package main

import (
	"fmt"
	"os"

	"github.com/aretw0/topolab/pkg/archive"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <archive> <dest-dir>",
	Short: "Unpack a project archive into a new project directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat archive: %w", err)
		}

		res, err := archive.Import(cmd.Context(), f, info.Size(), args[1], archive.Options{
			Images: cfg.Images,
			Name:   name,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %s as project %s\n", res.Name, res.ProjectID)
		fmt.Fprintf(out, "Descriptor: %s\n", res.Descriptor)
		for _, img := range res.MissingImages {
			fmt.Fprintf(out, "Missing image: %s\n", img)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("name", "", "Name of the imported project (default: the archived name)")
}
