package cache

import (
	"fmt"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SpoolFactory creates audit spools based on configuration
type SpoolFactory struct {
	auditConfig           config.AuditConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SpoolFactoryOption is a functional option for configuring the factory
type SpoolFactoryOption func(*SpoolFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SpoolFactoryOption {
	return func(f *SpoolFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory spool
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) SpoolFactoryOption {
	return func(f *SpoolFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSpoolFactory creates a new factory
func NewSpoolFactory(auditCfg config.AuditConfig, redisCfg config.RedisConfig, opts ...SpoolFactoryOption) *SpoolFactory {
	f := &SpoolFactory{
		auditConfig:           auditCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateSpool returns the spool named by audit.spool. A redis spool that
// cannot connect falls back to memory when fallback is allowed.
func (f *SpoolFactory) CreateSpool() (audit.Spool, error) {
	if f.auditConfig.Spool != "redis" {
		f.logger.Info("using in-memory audit spool")
		return NewInMemoryAuditSpool(0), nil
	}

	spool, err := NewRedisAuditSpool(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.auditConfig.SpoolKey)
	if err == nil {
		f.logger.Info("using Redis audit spool", zap.String("key", spool.key))
		return spool, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for audit spool but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory audit spool. "+
		"Spooled audit entries will not survive a restart.",
		zap.Error(err),
	)
	return NewInMemoryAuditSpool(0), nil
}
