package ports

import (
	"context"

	"github.com/aretw0/topolab/pkg/domain"
)

// ProjectStore persists the controller's project registry so projects survive restarts.
// Only the registry entry is stored; the topology itself lives in the project directory.
type ProjectStore interface {
	// Save persists the record under its project ID.
	Save(ctx context.Context, record domain.ProjectRecord) error

	// Load retrieves a record.
	// Returns domain.ErrProjectNotFound if the project is not registered.
	Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, projectID string) error

	// List returns every registered record.
	List(ctx context.Context) ([]domain.ProjectRecord, error)
}
