package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/audit"
)

// AuditEntryModel is an append-only audit row. No code path updates or
// deletes it.
type AuditEntryModel struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Timestamp time.Time     `gorm:"not null;index"`
	Action    audit.Action  `gorm:"type:varchar(64);not null;index"`
	RequestID string        `gorm:"type:varchar(64);index"`
	UserID    string        `gorm:"type:varchar(64);index"`
	TenantID  string        `gorm:"type:varchar(64);not null;index"`
	Outcome   audit.Outcome `gorm:"type:varchar(16);not null"`
	Reason    string        `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string {
	return "audit_entries"
}

// ToDomain converts the persistence model to an audit entry.
func (m *AuditEntryModel) ToDomain() audit.Entry {
	return audit.Entry{
		ID:        m.ID,
		Timestamp: m.Timestamp,
		Action:    m.Action,
		RequestID: m.RequestID,
		UserID:    m.UserID,
		TenantID:  m.TenantID,
		Outcome:   m.Outcome,
		Reason:    m.Reason,
	}
}

// FromDomain populates the persistence model from an audit entry.
func (m *AuditEntryModel) FromDomain(e audit.Entry) {
	m.ID = e.ID
	m.Timestamp = e.Timestamp
	m.Action = e.Action
	m.RequestID = e.RequestID
	m.UserID = e.UserID
	m.TenantID = e.TenantID
	m.Outcome = e.Outcome
	m.Reason = e.Reason
}
