package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/topolab/pkg/archive"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-dir>",
	Short: "Package a project directory as a portable archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		descriptor, _ := cmd.Flags().GetString("descriptor")
		output, _ := cmd.Flags().GetString("output")
		includeImages, _ := cmd.Flags().GetBool("include-images")

		p, err := openProjectDir(args[0], descriptor)
		if err != nil {
			return err
		}
		stream, err := archive.Export(cmd.Context(), p, archive.Options{
			IncludeImages: includeImages,
			Images:        cfg.Images,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer stream.Close()

		if output == "" || output == "-" {
			_, err = stream.WriteTo(cmd.OutOrStdout())
			return err
		}
		return writeArchive(output, stream)
	},
}

// writeArchive streams into a temp file next to dest and renames it, so an
// interrupted export never leaves a truncated archive behind.
func writeArchive(dest string, stream io.WriterTo) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".topolab-export-*")
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if _, err := stream.WriteTo(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move archive into place: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "Archive to write (default: stdout)")
	exportCmd.Flags().String("descriptor", "", "Descriptor file when the directory holds several")
	exportCmd.Flags().Bool("include-images", false, "Bundle the images referenced by the nodes")
}
