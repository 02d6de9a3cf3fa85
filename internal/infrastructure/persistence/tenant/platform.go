package tenant

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBypassReasonRequired is returned when a platform session is opened without a reason
var ErrBypassReasonRequired = errors.New("tenant bypass requires a reason")

type bypassKey struct{}

// Platform opens database sessions that skip tenant isolation. It is meant
// for trusted internal callers only: directory lookups that run before a
// request context exists, audit persistence and operator tooling.
type Platform struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlatform creates a Platform over db
func NewPlatform(db *gorm.DB, logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{db: db, logger: logger.Named("tenant")}
}

// Session returns db bound to ctx with tenant isolation bypassed. Every
// statement run through the session is logged with reason.
func (p *Platform) Session(ctx context.Context, reason string) *gorm.DB {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		tx := p.db.WithContext(ctx)
		_ = tx.AddError(ErrBypassReasonRequired)
		return tx
	}
	p.logger.Debug("Opening tenant bypass session", zap.String("reason", reason))
	return p.db.WithContext(context.WithValue(ctx, bypassKey{}, reason))
}

func bypassReason(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	reason, ok := ctx.Value(bypassKey{}).(string)
	return reason, ok && reason != ""
}
