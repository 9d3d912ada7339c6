package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/topolab/internal/presentation/graph"
	"github.com/aretw0/topolab/internal/presentation/tui"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Inspect projects",
}

var projectShowCmd = &cobra.Command{
	Use:   "show <project-dir>",
	Short: "Describe the topology of a project directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptor, _ := cmd.Flags().GetString("descriptor")
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		raw, _ := cmd.Flags().GetBool("raw")

		p, err := openProjectDir(args[0], descriptor)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if mermaid {
			fmt.Fprint(out, graph.GenerateMermaid(p.Dump()))
			return nil
		}

		md := tui.Summary(p.Dump())
		if raw {
			fmt.Fprint(out, md)
			return nil
		}
		rendered, err := tui.NewRenderer()(md)
		if err != nil {
			// Fall back to plain markdown when the terminal style cannot load.
			fmt.Fprint(out, md)
			return nil
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects of the configured registry",
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

		records, err := ctl.Projects(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-20s %s  %s\n", r.ProjectID, r.Name, tui.Status(string(r.Status)), r.Path)
		}
		return nil
	},
}

var projectDiffCmd = &cobra.Command{
	Use:   "diff <old-project-dir> <new-project-dir>",
	Short: "Compare the topologies of two project directories",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		oldDir, err := openProjectDir(args[0], "")
		if err != nil {
			return err
		}
		newDir, err := openProjectDir(args[1], "")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		diff := domain.Diff(oldDir.Dump(), newDir.Dump())
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(diff)
		}
		if diff == nil {
			fmt.Fprintln(out, "No changes")
			return nil
		}
		if diff.Name != nil {
			fmt.Fprintf(out, "name: %s -> %s\n", oldDir.Dump().Name, *diff.Name)
		}
		printDelta(out, "node", diff.Nodes)
		printDelta(out, "link", diff.Links)
		return nil
	},
}

func printDelta(w io.Writer, kind string, d *domain.RecordDelta) {
	if d == nil {
		return
	}
	for _, id := range d.Added {
		fmt.Fprintf(w, "+ %s %s\n", kind, id)
	}
	for _, id := range d.Removed {
		fmt.Fprintf(w, "- %s %s\n", kind, id)
	}
	for _, id := range d.Changed {
		fmt.Fprintf(w, "~ %s %s\n", kind, id)
	}
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectShowCmd, projectListCmd, projectDiffCmd)
	projectDiffCmd.Flags().Bool("json", false, "Print the diff as JSON")
	projectShowCmd.Flags().String("descriptor", "", "Descriptor file when the directory holds several")
	projectShowCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart instead of the summary")
	projectShowCmd.Flags().Bool("raw", false, "Print the summary as plain markdown")
}
