package models

import "time"

// 报警事件类型
const (
	EventTypeThresholdViolation = "threshold_violation"
	EventTypeRecovered          = "recovered"
)

// AlertEvent 报警事件（发布到报警 Stream 及 WebSocket 广播）
type AlertEvent struct {
	EventID       string    `json:"event_id"`
	DeviceID      string    `json:"device_id"`
	EventType     string    `json:"event_type"` // threshold_violation, recovered
	Message       string    `json:"message"`
	Line1Violated bool      `json:"line1_violated"`
	Line2Violated bool      `json:"line2_violated"`
	TriggeredAt   time.Time `json:"triggered_at"`
}
