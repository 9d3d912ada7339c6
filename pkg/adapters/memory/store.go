package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// Store implements ports.ProjectStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.ProjectRecord
	mu   sync.RWMutex
}

var _ ports.ProjectStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.ProjectRecord),
	}
}

// Save persists the record in memory. Records are stored by value, so callers
// cannot mutate stored state afterwards.
func (s *Store) Save(ctx context.Context, record domain.ProjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.ProjectID] = record
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[projectID]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return &record, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, projectID)
	return nil
}

// List returns every record, ordered by project ID.
func (s *Store) List(ctx context.Context) ([]domain.ProjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.ProjectRecord, 0, len(s.data))
	for _, r := range s.data {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ProjectID < records[j].ProjectID })
	return records, nil
}
