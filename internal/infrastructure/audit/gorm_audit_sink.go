package audit

import (
	"context"
	"time"

	"github.com/finbooks/backend/internal/domain/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditLog is the persisted form of an audit entry
type AuditLog struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Actor       string
	IPAddress   string
	UserAgent   string
	Action      string    `gorm:"not null;index"`
	EntityType  string    `gorm:"not null"`
	EntityID    uuid.UUID `gorm:"type:uuid;index"`
	Detail      string
	BeforeState string
	AfterState  string
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (AuditLog) TableName() string {
	return "audit_logs"
}

// GormAuditSink persists audit entries to the audit_logs table. Write
// failures are logged and swallowed so auditing can never fail a business
// operation.
type GormAuditSink struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormAuditSink creates a new GormAuditSink
func NewGormAuditSink(db *gorm.DB, logger *zap.Logger) *GormAuditSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormAuditSink{db: db, logger: logger}
}

// Record persists one audit entry
func (s *GormAuditSink) Record(ctx context.Context, entry billing.AuditEntry) {
	log := AuditLog{
		ID:          uuid.New(),
		TenantID:    entry.TenantID,
		Actor:       entry.Actor,
		IPAddress:   entry.IPAddress,
		UserAgent:   entry.UserAgent,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Detail:      entry.Detail,
		BeforeState: entry.Before,
		AfterState:  entry.After,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("action", entry.Action),
			zap.String("entity_id", entry.EntityID.String()),
			zap.Error(err))
	}
}

// Ensure GormAuditSink implements AuditSink
var _ billing.AuditSink = (*GormAuditSink)(nil)
