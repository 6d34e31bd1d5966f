// Package audit records lifecycle events after they commit.
package audit

import (
	"context"
	"encoding/json"
	"log"

	"skillmatch/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSink appends events to the audit_events table.
type GormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

func (s *GormSink) Log(ctx context.Context, event models.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(&event).Error
}

// Recent returns the newest events, optionally limited to one type.
func (s *GormSink) Recent(ctx context.Context, eventType string, limit int) ([]models.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var events []models.AuditEvent
	err := q.Find(&events).Error
	return events, err
}

// LogSink writes events to the process log. Used with the memory store.
type LogSink struct {
	logger *log.Logger
}

func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Log(_ context.Context, event models.AuditEvent) error {
	actor := "-"
	if event.ActorID != nil {
		actor = event.ActorID.String()
	}
	subject, _ := json.Marshal(event.Subject)
	result, _ := json.Marshal(event.Result)
	s.logger.Printf("[audit] %s actor=%s subject=%s result=%s", event.EventType, actor, subject, result)
	return nil
}
