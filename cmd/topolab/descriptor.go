package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/topolab/pkg/domain"
)

// projectDir is an offline project: a directory with its descriptor, used by
// the commands that work without a running controller.
type projectDir struct {
	path string
	desc *domain.Topology
}

func (p *projectDir) Name() string            { return p.desc.Name }
func (p *projectDir) Path() string            { return p.path }
func (p *projectDir) Dump() *domain.Topology { return p.desc }

// openProjectDir reads the descriptor of a project directory. A directory
// holding several descriptors must name one with descriptor.
func openProjectDir(dir, descriptor string) (*projectDir, error) {
	if descriptor == "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+domain.DescriptorExt))
		if err != nil {
			return nil, fmt.Errorf("failed to search descriptors: %w", err)
		}
		sort.Strings(matches)
		switch len(matches) {
		case 0:
			return nil, fmt.Errorf("no %s descriptor in %s", domain.DescriptorExt, dir)
		case 1:
			descriptor = matches[0]
		default:
			return nil, fmt.Errorf("several descriptors in %s, pick one with --descriptor", dir)
		}
	} else if !filepath.IsAbs(descriptor) {
		descriptor = filepath.Join(dir, descriptor)
	}

	data, err := os.ReadFile(descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	var desc domain.Topology
	if err := json.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", descriptor, err)
	}
	if desc.Name == "" {
		desc.Name = filepath.Base(dir)
	}
	return &projectDir{path: dir, desc: &desc}, nil
}
