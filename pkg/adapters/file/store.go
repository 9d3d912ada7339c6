package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/topolab/internal/fsutil"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

const ext = ".json"

// Store implements ports.ProjectStore using the local filesystem.
// It keeps one JSON file per project record in a configured directory.
type Store struct {
	BasePath string
}

var _ ports.ProjectStore = (*Store)(nil)

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".topolab/registry".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".topolab", "registry")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(projectID string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("projectID cannot be empty")
	}
	if !filepath.IsLocal(projectID) || strings.ContainsAny(projectID, `/\`) {
		return "", fmt.Errorf("invalid projectID %q", projectID)
	}
	return filepath.Join(s.BasePath, projectID+ext), nil
}

// Save persists the record atomically.
func (s *Store) Save(ctx context.Context, record domain.ProjectRecord) error {
	dest, err := s.path(record.ProjectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project record: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dest, data, 0644); err != nil {
		return fmt.Errorf("failed to save project record: %w", err)
	}
	return nil
}

// Load reads the record of a project.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	src, err := s.path(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read project record: %w", err)
	}
	var record domain.ProjectRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project record: %w", err)
	}
	return &record, nil
}

// Delete removes the record file. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	src, err := s.path(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete project record: %w", err)
	}
	return nil
}

// List returns every record, sorted by project ID.
func (s *Store) List(ctx context.Context) ([]domain.ProjectRecord, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.ProjectRecord{}, nil
		}
		return nil, fmt.Errorf("failed to list project records: %w", err)
	}

	records := []domain.ProjectRecord{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		rec, err := s.Load(ctx, strings.TrimSuffix(name, ext))
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	slices.SortFunc(records, func(a, b domain.ProjectRecord) int {
		return strings.Compare(a.ProjectID, b.ProjectID)
	})
	return records, nil
}
