package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "topolab:project:"

// Store implements ports.ProjectStore on Redis.
// Each record is a JSON string under <prefix><project_id>; <prefix>index is a set of IDs.
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.ProjectStore = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New connects to the Redis server at addr.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client { return s.client }

func (s *Store) key(projectID string) string { return s.prefix + projectID }
func (s *Store) indexKey() string            { return s.prefix + "index" }

// Save writes the record and indexes it in one transaction.
func (s *Store) Save(ctx context.Context, record domain.ProjectRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal project record: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.key(record.ProjectID), data, 0)
		pipe.SAdd(ctx, s.indexKey(), record.ProjectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", record.ProjectID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	data, err := s.client.Get(ctx, s.key(projectID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	var record domain.ProjectRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project record: %w", err)
	}
	return &record, nil
}

func (s *Store) Delete(ctx context.Context, projectID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.key(projectID))
		pipe.SRem(ctx, s.indexKey(), projectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectID, err)
	}
	return nil
}

// List returns every indexed record, ordered by project ID. Index entries whose
// record vanished are skipped.
func (s *Store) List(ctx context.Context) ([]domain.ProjectRecord, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	sort.Strings(ids)

	records := make([]domain.ProjectRecord, 0, len(ids))
	for _, id := range ids {
		r, err := s.Load(ctx, id)
		if errors.Is(err, domain.ErrProjectNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, nil
}
