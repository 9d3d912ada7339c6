package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/topolab/internal/logging"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// Source is the project being exported: its in-memory topology and its directory.
type Source interface {
	Name() string
	Path() string
	Dump() *domain.Topology
}

// Options tune Export and Import.
type Options struct {
	// IncludeImages bundles every image file referenced by a node under images/<store>/.
	IncludeImages bool
	// Images locates the image store directories.
	Images ports.ImageStore
	// Name is the project name given to an imported project. Defaults to the archived name.
	Name string
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}

const (
	snapshotsDir = "project-files/snapshots"
	imagesDir    = "images"
	logSuffix    = "_log.txt"
)

// Export validates the project and prepares its archive.
//
// Every check runs before Export returns: started nodes and non-portable node
// types are refused with a Conflict error before the project directory is
// touched, then the directory is walked once and the descriptor rewritten.
// The returned Stream only reads file contents as it is consumed.
func Export(ctx context.Context, src Source, opts Options) (*Stream, error) {
	if err := Check(src); err != nil {
		return nil, err
	}

	files, descriptors, err := snapshot(ctx, src.Path())
	if err != nil {
		return nil, err
	}

	raw, err := loadDescriptor(src, descriptors)
	if err != nil {
		return nil, err
	}

	images, err := rewriteDescriptor(raw, opts)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}

	entries := make([]entry, 0, len(files)+len(images)+1)
	entries = append(entries, entry{name: domain.DescriptorName, data: data, modified: time.Now()})
	entries = append(entries, files...)
	entries = append(entries, images...)

	opts.logger().Info("Export prepared", "project_name", src.Name(), "files", len(files), "images", len(images))
	return newStream(entries), nil
}

// Check reports whether src can be exported right now without touching disk.
func Check(src Source) error {
	return checkPreconditions(src.Dump())
}

// checkPreconditions refuses projects that cannot be archived, using only the
// in-memory topology.
func checkPreconditions(desc *domain.Topology) error {
	for _, n := range desc.Topology.Nodes {
		if n.Status == domain.NodeStarted {
			return domain.ConflictError("export project", "node %q is running; stop all nodes before exporting", n.Name)
		}
		if !n.NodeType.Portable() {
			return domain.ConflictError("export project", "%s node %q cannot be exported", n.NodeType, n.Name)
		}
	}
	return nil
}

// snapshot walks the project tree once. It returns the files to archive and, apart,
// the descriptor files found at the root.
func snapshot(ctx context.Context, root string) (files []entry, descriptors []string, err error) {
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == snapshotsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !strings.Contains(rel, "/") && strings.HasSuffix(rel, domain.DescriptorExt) {
			descriptors = append(descriptors, rel)
			return nil
		}
		if strings.HasSuffix(rel, logSuffix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, entry{name: rel, path: p, modified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, nil, archiveError("walk "+root, err)
	}
	sort.Strings(descriptors)
	return files, descriptors, nil
}

// loadDescriptor reads the project's own descriptor, or the first one by name,
// or synthesizes one from the in-memory topology when the directory has none.
// It is decoded generically so fields this controller does not model survive.
func loadDescriptor(src Source, descriptors []string) (map[string]any, error) {
	var chosen string
	for _, name := range descriptors {
		if name == src.Name()+domain.DescriptorExt {
			chosen = name
			break
		}
	}
	if chosen == "" && len(descriptors) > 0 {
		chosen = descriptors[0]
	}

	var data []byte
	if chosen == "" {
		var err error
		if data, err = json.Marshal(src.Dump()); err != nil {
			return nil, fmt.Errorf("failed to marshal topology: %w", err)
		}
	} else {
		var err error
		if data, err = os.ReadFile(filepath.Join(src.Path(), chosen)); err != nil {
			return nil, archiveError("read "+chosen, err)
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, archiveError("parse "+chosen, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// rewriteDescriptor refuses non-portable nodes, rewrites absolute image paths to
// their base name and, when asked, resolves the image files to bundle.
func rewriteDescriptor(raw map[string]any, opts Options) ([]entry, error) {
	var (
		images []entry
		seen   = make(map[string]bool)
	)
	for _, node := range descriptorNodes(raw) {
		tag, _ := node["node_type"].(string)
		t, err := domain.ParseNodeType(tag)
		if err != nil {
			// Types this controller does not know are carried through untouched.
			continue
		}
		if !t.Portable() {
			return nil, domain.ConflictError("export project", "%s node %v cannot be exported", t, node["name"])
		}

		props, _ := node["properties"].(map[string]any)
		typed, err := domain.DecodeProperties(t, props)
		if err != nil {
			return nil, archiveError("decode node properties", err)
		}
		refs := typed.Images()
		for _, key := range slices.Sorted(maps.Keys(refs)) {
			value := refs[key]
			base := filepath.Base(value)
			if filepath.IsAbs(value) {
				props[key] = base
			}
			if !opts.IncludeImages {
				continue
			}
			name := path.Join(imagesDir, t.ImageStore(), base)
			if seen[name] {
				continue
			}
			file, err := resolveImage(value, t.ImageStore(), opts.Images)
			if err != nil {
				return nil, err
			}
			seen[name] = true
			info, err := os.Stat(file)
			if err != nil {
				return nil, archiveError("stat "+file, err)
			}
			images = append(images, entry{name: name, path: file, modified: info.ModTime()})
		}
	}
	return images, nil
}

// resolveImage finds the file behind an image reference: the absolute path if
// it still exists, else the base name inside the store directory.
func resolveImage(value, store string, images ports.ImageStore) (string, error) {
	if filepath.IsAbs(value) {
		if info, err := os.Stat(value); err == nil && info.Mode().IsRegular() {
			return value, nil
		}
	}
	if images != nil {
		if dir, ok := images.Dir(store); ok {
			candidate := filepath.Join(dir, filepath.Base(value))
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, nil
			}
		}
	}
	return "", archiveError("resolve image", fmt.Errorf("image %q not found in store %s: %w", value, store, fs.ErrNotExist))
}

// descriptorNodes returns the node objects of a generically decoded descriptor.
func descriptorNodes(raw map[string]any) []map[string]any {
	body, _ := raw["topology"].(map[string]any)
	list, _ := body["nodes"].([]any)
	nodes := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if n, ok := item.(map[string]any); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func archiveError(op string, err error) error {
	return domain.ArchiveError(op, err)
}
