package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/topolab/internal/fsutil"
	"github.com/aretw0/topolab/pkg/compute"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/dsl"
	"github.com/spf13/cobra"
)

var projectInitCmd = &cobra.Command{
	Use:   "init <project-dir>",
	Short: "Create a project directory with a new descriptor",
	Long: `Create a project directory holding a topology descriptor.

Nodes are given as name=type and placed on the local compute.
Links are given as name:adapter/port,name:adapter/port.

  topolab project init ./lab --node r1=dynamips --node pc1=vpcs --link r1:0/0,pc1:0/0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		name, _ := cmd.Flags().GetString("name")
		nodes, _ := cmd.Flags().GetStringArray("node")
		links, _ := cmd.Flags().GetStringArray("link")
		if name == "" {
			name = filepath.Base(dir)
		}

		desc, err := buildDescriptor(name, nodes, links)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(desc, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode descriptor: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
		path := filepath.Join(dir, name+domain.DescriptorExt)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write descriptor: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", name, desc.ProjectID)
		return nil
	},
}

func buildDescriptor(name string, nodes, links []string) (*domain.Topology, error) {
	b := dsl.New(name)
	for _, n := range nodes {
		id, kind, ok := strings.Cut(n, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid node %q, want name=type", n)
		}
		t, err := domain.ParseNodeType(kind)
		if err != nil {
			return nil, err
		}
		b.Add(id).Type(t).On(compute.LocalID)
	}
	for _, l := range links {
		a, z, ok := strings.Cut(l, ",")
		if !ok {
			return nil, fmt.Errorf("invalid link %q, want node:adapter/port,node:adapter/port", l)
		}
		an, aa, ap, err := parseEndpoint(a)
		if err != nil {
			return nil, err
		}
		zn, za, zp, err := parseEndpoint(z)
		if err != nil {
			return nil, err
		}
		b.Link(an, aa, ap, zn, za, zp)
	}
	return b.Build()
}

// parseEndpoint reads "node:adapter/port". The port part defaults to 0/0.
func parseEndpoint(s string) (string, int, int, error) {
	node, slot, ok := strings.Cut(s, ":")
	if !ok {
		return node, 0, 0, nil
	}
	as, ps, ok := strings.Cut(slot, "/")
	if !ok {
		return "", 0, 0, fmt.Errorf("invalid endpoint %q, want node:adapter/port", s)
	}
	adapter, err := strconv.Atoi(as)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid adapter in %q: %w", s, err)
	}
	port, err := strconv.Atoi(ps)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	return node, adapter, port, nil
}

func init() {
	projectCmd.AddCommand(projectInitCmd)
	projectInitCmd.Flags().String("name", "", "Project name (default: the directory name)")
	projectInitCmd.Flags().StringArray("node", nil, "Node as name=type, repeatable")
	projectInitCmd.Flags().StringArray("link", nil, "Link as node:adapter/port,node:adapter/port, repeatable")
}
