package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/testaustime/testaustime-auth/internal/models"
)

// Recorder writes login outcomes to the login_events table
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecorder creates a Recorder
func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{db: db, logger: logger}
}

// RecordLogin stores one login attempt. An empty errorKind means success.
func (r *Recorder) RecordLogin(ctx context.Context, externalID, errorKind, remoteAddr string) error {
	event := models.LoginEvent{
		ExternalID: optional(externalID),
		Outcome:    models.LoginOutcomeSuccess,
		RemoteAddr: optional(remoteAddr),
		CreatedAt:  time.Now().UTC(),
	}
	if errorKind != "" {
		event.Outcome = models.LoginOutcomeFailed
		event.ErrorKind = &errorKind
	}

	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record login event: %w", err)
	}
	return nil
}

// Prune deletes login events older than retention and returns how many were removed
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.LoginEvent{})
	if result.Error != nil {
		r.logger.Error("Audit cleanup: Failed to delete expired login events", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to prune login events: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		r.logger.Info("Audit cleanup: Deleted expired login events", zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
