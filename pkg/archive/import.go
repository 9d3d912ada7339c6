package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/topolab/internal/fsutil"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
)

// Result describes an imported project.
type Result struct {
	ProjectID  string
	Name       string
	Path       string // project directory
	Descriptor string // descriptor file written in Path
	// MissingImages lists "<store>/<file>" references that the local image
	// stores cannot satisfy.
	MissingImages []string
}

// Import unpacks a project archive into dest under a fresh project ID.
//
// Entry names are validated before anything is written; an absolute name or one
// escaping dest fails the whole import. Bundled images go to the configured
// image stores without replacing files already there.
func Import(ctx context.Context, r io.ReaderAt, size int64, dest string, opts Options) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, archiveError("open archive", err)
	}
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)

	var descriptor *zip.File
	for _, f := range zr.File {
		if !filepath.IsLocal(filepath.FromSlash(strings.TrimSuffix(f.Name, "/"))) {
			return nil, archiveError("import project", fmt.Errorf("entry %q escapes the project directory", f.Name))
		}
		if f.Name == domain.DescriptorName {
			descriptor = f
		}
	}
	if descriptor == nil {
		return nil, archiveError("import project", fmt.Errorf("archive has no %s", domain.DescriptorName))
	}

	logger := opts.logger()
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f == descriptor {
			continue
		}
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(filepath.Join(dest, filepath.FromSlash(f.Name)), 0755); err != nil {
				return nil, archiveError("create "+f.Name, err)
			}
			continue
		}

		target, keepExisting := filepath.Join(dest, filepath.FromSlash(f.Name)), false
		if store, file, ok := imageEntry(f.Name); ok {
			if dir, configured := imageDir(opts, store); configured {
				target, keepExisting = filepath.Join(dir, file), true
			} else {
				logger.Warn("No image store configured, keeping image in project", "store", store, "image", file)
			}
		}
		if keepExisting {
			if _, err := os.Stat(target); err == nil {
				logger.Debug("Image already present", "path", target)
				continue
			}
		}
		if err := extract(f, target); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Join(dest, filepath.FromSlash(snapshotsDir)), 0755); err != nil {
		return nil, archiveError("create snapshots directory", err)
	}

	raw, err := readDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	res := &Result{ProjectID: uuid.NewString(), Name: opts.Name, Path: dest}
	if res.Name == "" {
		res.Name, _ = raw["name"].(string)
	}
	if res.Name == "" {
		res.Name = filepath.Base(dest)
	}
	raw["project_id"] = res.ProjectID
	raw["name"] = res.Name

	if res.MissingImages, err = relinkImages(raw, opts); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	res.Descriptor = filepath.Join(dest, res.Name+domain.DescriptorExt)
	if err := fsutil.WriteFileAtomic(res.Descriptor, data, 0644); err != nil {
		return nil, archiveError("write descriptor", err)
	}

	logger.Info("Project imported", "project_id", res.ProjectID, "name", res.Name, "missing_images", len(res.MissingImages))
	return res, nil
}

// imageEntry splits "images/<store>/<file>".
func imageEntry(name string) (store, file string, ok bool) {
	parts := strings.Split(name, "/")
	if len(parts) != 3 || parts[0] != imagesDir || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

func imageDir(opts Options, store string) (string, bool) {
	if opts.Images == nil {
		return "", false
	}
	return opts.Images.Dir(store)
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return archiveError("create "+filepath.Dir(target), err)
	}
	rc, err := f.Open()
	if err != nil {
		return archiveError("open "+f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return archiveError("create "+target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return archiveError("extract "+f.Name, err)
	}
	if err := out.Close(); err != nil {
		return archiveError("extract "+f.Name, err)
	}
	return nil
}

func readDescriptor(f *zip.File) (map[string]any, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, archiveError("open "+f.Name, err)
	}
	defer rc.Close()

	var raw map[string]any
	if err := json.NewDecoder(rc).Decode(&raw); err != nil {
		return nil, archiveError("parse "+f.Name, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// relinkImages rewrites absolute image paths to their base name and reports
// every reference the local stores cannot satisfy, as "<store>/<file>".
func relinkImages(raw map[string]any, opts Options) ([]string, error) {
	missing := make(map[string]bool)
	for _, node := range descriptorNodes(raw) {
		tag, _ := node["node_type"].(string)
		t, err := domain.ParseNodeType(tag)
		if err != nil {
			continue
		}
		props, _ := node["properties"].(map[string]any)
		typed, err := domain.DecodeProperties(t, props)
		if err != nil {
			return nil, archiveError("decode node properties", err)
		}
		for key, value := range typed.Images() {
			base := filepath.Base(value)
			if filepath.IsAbs(value) {
				props[key] = base
			}
			store := t.ImageStore()
			dir, ok := imageDir(opts, store)
			if !ok {
				missing[store+"/"+base] = true
				continue
			}
			if _, err := os.Stat(filepath.Join(dir, base)); errors.Is(err, fs.ErrNotExist) {
				missing[store+"/"+base] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(missing)), nil
}
