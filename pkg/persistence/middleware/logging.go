package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

type loggingMiddleware struct {
	next   ports.ProjectStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs every registry write at debug level and every
// failure at warn level. A missing project on Load is not a failure.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.ProjectStore) ports.ProjectStore {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

func (m *loggingMiddleware) Save(ctx context.Context, record domain.ProjectRecord) error {
	if err := m.next.Save(ctx, record); err != nil {
		m.logger.Warn("Registry save failed", "project_id", record.ProjectID, "err", err)
		return err
	}
	m.logger.Debug("Project registered", "project_id", record.ProjectID, "status", record.Status)
	return nil
}

func (m *loggingMiddleware) Load(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	rec, err := m.next.Load(ctx, projectID)
	if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
		m.logger.Warn("Registry load failed", "project_id", projectID, "err", err)
	}
	return rec, err
}

func (m *loggingMiddleware) Delete(ctx context.Context, projectID string) error {
	if err := m.next.Delete(ctx, projectID); err != nil {
		m.logger.Warn("Registry delete failed", "project_id", projectID, "err", err)
		return err
	}
	m.logger.Debug("Project unregistered", "project_id", projectID)
	return nil
}

func (m *loggingMiddleware) List(ctx context.Context) ([]domain.ProjectRecord, error) {
	records, err := m.next.List(ctx)
	if err != nil {
		m.logger.Warn("Registry list failed", "err", err)
	}
	return records, err
}
