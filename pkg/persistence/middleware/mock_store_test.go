package middleware_test

import (
	"context"
	"errors"

	"github.com/aretw0/topolab/pkg/adapters/memory"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

var errBroken = errors.New("disk on fire")

// BrokenStore is a memory store whose writes can be made to fail.
type BrokenStore struct {
	*memory.Store
	Broken bool
}

func NewBrokenStore() *BrokenStore {
	return &BrokenStore{Store: memory.NewStore()}
}

func (s *BrokenStore) Save(ctx context.Context, record domain.ProjectRecord) error {
	if s.Broken {
		return errBroken
	}
	return s.Store.Save(ctx, record)
}

var _ ports.ProjectStore = (*BrokenStore)(nil)
