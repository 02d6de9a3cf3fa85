package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names an audited access attempt
type Action string

const (
	ActionRoutingMismatch      Action = "tenant.routing_mismatch"
	ActionPredicateMismatch    Action = "tenant.predicate_mismatch"
	ActionReverificationFailed Action = "tenant.reverification_failed"
	ActionAssociationMismatch  Action = "tenant.association_mismatch"
	ActionBypass               Action = "tenant.bypass"
	ActionSettingsUpdated      Action = "tenant.settings_updated"
	ActionOrderVoided          Action = "order.voided"
)

// Outcome of an audited attempt
type Outcome string

const (
	OutcomeDenied  Outcome = "denied"
	OutcomeAllowed Outcome = "allowed"
)

// Entry is an immutable audit record. Entries are only ever appended.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	RequestID string    `json:"request_id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
}

// Denied builds a denied entry for the given identifiers.
func Denied(action Action, tenantID, userID, requestID, reason string) Entry {
	return Entry{
		Action:    action,
		TenantID:  tenantID,
		UserID:    userID,
		RequestID: requestID,
		Outcome:   OutcomeDenied,
		Reason:    reason,
	}
}

// Allowed builds an entry recording a permitted sensitive operation.
func Allowed(action Action, tenantID, userID, requestID, reason string) Entry {
	e := Denied(action, tenantID, userID, requestID, reason)
	e.Outcome = OutcomeAllowed
	return e
}

// Query filters audit entries. Zero fields do not filter.
type Query struct {
	TenantID string
	UserID   string
	Action   Action
	From     time.Time
	To       time.Time
	Limit    int
}

// Matches reports whether e satisfies q.
func (q Query) Matches(e Entry) bool {
	if q.TenantID != "" && e.TenantID != q.TenantID {
		return false
	}
	if q.UserID != "" && e.UserID != q.UserID {
		return false
	}
	if q.Action != "" && e.Action != q.Action {
		return false
	}
	if !q.From.IsZero() && e.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !e.Timestamp.Before(q.To) {
		return false
	}
	return true
}

// EffectiveLimit returns the row cap for q.
func (q Query) EffectiveLimit() int {
	switch {
	case q.Limit <= 0:
		return 100
	case q.Limit > 1000:
		return 1000
	default:
		return q.Limit
	}
}

// Recorder accepts audit entries without blocking the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Store is the durable append-only audit log. It exposes no update or delete.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Find(ctx context.Context, q Query) ([]Entry, error)
}

// Spool parks entries that could not be appended so they can be retried later.
type Spool interface {
	Push(ctx context.Context, entry Entry) error
	// Pop returns ok=false when the spool is empty
	Pop(ctx context.Context) (entry Entry, ok bool, err error)
	Len(ctx context.Context) (int64, error)
}
