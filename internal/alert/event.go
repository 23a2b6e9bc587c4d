package alert

import (
	"time"

	"aquasense-alert/internal/evaluator"
	"aquasense-alert/internal/models"

	"github.com/google/uuid"
)

// NewViolationEvent 构建阈值违规报警事件
func NewViolationEvent(deviceID string, report evaluator.ViolationReport, at time.Time) *models.AlertEvent {
	return &models.AlertEvent{
		EventID:       uuid.New().String(),
		DeviceID:      deviceID,
		EventType:     models.EventTypeThresholdViolation,
		Message:       report.Message,
		Line1Violated: report.Line1Violated,
		Line2Violated: report.Line2Violated,
		TriggeredAt:   at,
	}
}

// NewRecoveredEvent 构建恢复事件
func NewRecoveredEvent(deviceID string, at time.Time) *models.AlertEvent {
	return &models.AlertEvent{
		EventID:     uuid.New().String(),
		DeviceID:    deviceID,
		EventType:   models.EventTypeRecovered,
		TriggeredAt: at,
	}
}
