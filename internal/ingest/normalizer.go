package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"aquasense-alert/internal/models"
)

// ValidationError 校验失败（缺少必填字段），同步返回给调用方
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Normalizer 遥测归一化器
// 将原始载荷转换为规范化的 Reading，数值字段缺失或非法时按 0 处理
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer 创建归一化器
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize 校验并归一化一条原始遥测
// device_id 为空时返回 ValidationError；其余字段宽松处理，坏数据不中断采集
func (n *Normalizer) Normalize(deviceID string, payload map[string]interface{}) (*models.Reading, error) {
	if deviceID == "" {
		return nil, &ValidationError{Field: "device_id", Reason: "required"}
	}

	reading := &models.Reading{
		DeviceID:     deviceID,
		Line1:        coerceNumber(payload["line1"]),
		Line2:        coerceNumber(payload["line2"]),
		Relay1Status: coerceNumber(payload["relay1_status"]),
		Relay2Status: coerceNumber(payload["relay2_status"]),
		Sensors:      make(map[string]float64, len(models.KnownSensorKeys)),
	}

	// 已知传感器指标逐个取值，缺失按 0
	sensors, _ := payload["sensors"].(map[string]interface{})
	for _, key := range models.KnownSensorKeys {
		if sensors != nil {
			reading.Sensors[key] = coerceNumber(sensors[key])
		} else {
			reading.Sensors[key] = 0
		}
	}
	// 未知的数值型指标也保留
	for key, value := range sensors {
		if _, known := reading.Sensors[key]; !known {
			reading.Sensors[key] = coerceNumber(value)
		}
	}

	// 时间戳：调用方提供则信任，否则打上服务端当前时间
	if ts, ok := parseTimestamp(payload["timestamp"]); ok {
		reading.Timestamp = ts
	} else {
		reading.Timestamp = n.now()
	}

	return reading, nil
}

// coerceNumber 宽松的数值转换，非法输入按 0 处理
func coerceNumber(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return 0
}

// parseTimestamp 解析调用方提供的时间戳（unix 秒或 RFC3339 字符串）
func parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case float64:
		if val > 0 {
			return time.Unix(int64(val), 0), true
		}
	case int64:
		if val > 0 {
			return time.Unix(val, 0), true
		}
	case json.Number:
		if sec, err := val.Int64(); err == nil && sec > 0 {
			return time.Unix(sec, 0), true
		}
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
