package ports

import (
	"context"

	"github.com/aretw0/topolab/pkg/domain"
)

// EventPublisher delivers project notifications to subscribers outside the controller.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
