package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/mntdherm/no-schema-update-sub001/internal/pkg/id"
)

type Service interface {
	// Record writes an audit entry. Fire-and-forget: a persistence failure
	// is logged, never propagated, and reported as false.
	Record(ctx context.Context, userID, userEmail, action, entity, entityID string, details map[string]interface{}) bool
	// ListByUser returns the newest entries for a user.
	ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditLogEntry, error)
}

type auditStore interface {
	Put(ctx context.Context, e *domain.AuditLogEntry) error
	ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditLogEntry, error)
}

type service struct {
	repo auditStore
}

type ServiceDeps struct {
	AuditRepo auditStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.AuditRepo}
}

func (s *service) Record(ctx context.Context, userID, userEmail, action, entity, entityID string, details map[string]interface{}) bool {
	entry := &domain.AuditLogEntry{
		LogID:     id.New(),
		UserID:    userID,
		UserEmail: userEmail,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	// Always emit to the structured log, whatever the repo does.
	slog.Info("audit",
		"action", action,
		"user_id", userID,
		"user_email", userEmail,
		"entity", entity,
		"entity_id", entityID,
	)
	if err := s.repo.Put(ctx, entry); err != nil {
		slog.Warn("failed to persist audit entry", "action", action, "user_id", userID, "err", err)
		return false
	}
	return true
}

func (s *service) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
