package models

import "time"

// Reading 一条归一化后的遥测采样（对应 telemetry_records 表的 payload）
type Reading struct {
	DeviceID     string             `json:"device_id" db:"device_id"`
	Line1        float64            `json:"line1" db:"line1"`
	Line2        float64            `json:"line2" db:"line2"`
	Sensors      map[string]float64 `json:"sensors" db:"sensors"`
	Relay1Status float64            `json:"relay1_status" db:"relay1_status"`
	Relay2Status float64            `json:"relay2_status" db:"relay2_status"`
	Timestamp    time.Time          `json:"timestamp" db:"timestamp"`
}

// KnownSensorKeys 水质/增氧传感器的已知指标键
// 缺失或非法的指标在归一化时按 0 处理
var KnownSensorKeys = []string{
	"do",          // 溶解氧 (mg/L)
	"ph",          // 酸碱度
	"temperature", // 水温 (°C)
	"salinity",    // 盐度 (ppt)
	"turbidity",   // 浊度 (NTU)
}
