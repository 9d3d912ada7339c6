// Package badger persists the project registry in an embedded Badger database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	badger "github.com/dgraph-io/badger/v4"
)

var keyPrefix = []byte("project:")

// Store implements ports.ProjectStore with Badger.
type Store struct {
	db *badger.DB
}

var _ ports.ProjectStore = (*Store)(nil)

// Open opens (or creates) the database in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Clean(dir))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway database that lives only in memory.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func projectKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}

func (s *Store) Save(ctx context.Context, record domain.ProjectRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal project record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(projectKey(record.ProjectID), data)
	})
}

func (s *Store) Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	var out domain.ProjectRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(projectKey(projectID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrProjectNotFound
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &out)
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) Delete(ctx context.Context, projectID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(projectKey(projectID))
	})
}

// List iterates the project keys in key order, which is project ID order.
func (s *Store) List(ctx context.Context) ([]domain.ProjectRecord, error) {
	records := []domain.ProjectRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var r domain.ProjectRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return records, nil
}
