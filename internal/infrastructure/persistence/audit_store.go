package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
)

// GormAuditStore implements audit.Store using GORM. Entries are only ever
// inserted; the store exposes no update or delete.
type GormAuditStore struct {
	platform *tenant.Platform
}

// NewGormAuditStore creates a new GormAuditStore
func NewGormAuditStore(platform *tenant.Platform) *GormAuditStore {
	return &GormAuditStore{platform: platform}
}

// Append inserts one entry. Entries without an id get a fresh one.
func (s *GormAuditStore) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	var model models.AuditEntryModel
	model.FromDomain(entry)
	return translate(s.platform.Session(ctx, "audit append").Create(&model).Error)
}

// Find returns entries matching q, newest first.
func (s *GormAuditStore) Find(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	query := s.platform.Session(ctx, "audit query").Model(&models.AuditEntryModel{})
	if q.TenantID != "" {
		query = query.Where("tenant_id = ?", q.TenantID)
	}
	if q.UserID != "" {
		query = query.Where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if !q.From.IsZero() {
		query = query.Where("timestamp >= ?", q.From)
	}
	if !q.To.IsZero() {
		query = query.Where("timestamp < ?", q.To)
	}

	var rows []models.AuditEntryModel
	if err := query.Order("timestamp DESC").Limit(q.EffectiveLimit()).Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]audit.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}
