package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aquasense-alert/internal/models"

	"go.uber.org/zap"
)

// recordIDLayout 记录ID格式（UTC）
// 同一秒内同设备的重复写入允许冲突，后写覆盖
const recordIDLayout = "2006-01-02_15-04-05"

// RecordID 从读数时间戳生成可排序的记录ID
func RecordID(t time.Time) string {
	return t.UTC().Format(recordIDLayout)
}

// TelemetryRepository 遥测持久化仓库（telemetry_records 表）
type TelemetryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTelemetryRepository 创建遥测仓库
func NewTelemetryRepository(db *sql.DB, logger *zap.Logger) *TelemetryRepository {
	return &TelemetryRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 持久化一条读数
// 冲突时覆盖（同秒同设备后写为准）
func (r *TelemetryRepository) Insert(ctx context.Context, reading *models.Reading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	recordID := RecordID(reading.Timestamp)
	query := `
		INSERT INTO telemetry_records (device_id, record_id, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (device_id, record_id)
		DO UPDATE SET payload = EXCLUDED.payload, created_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, reading.DeviceID, recordID, payload); err != nil {
		return fmt.Errorf("failed to insert telemetry record: %w", err)
	}

	r.logger.Debug("Telemetry record persisted",
		zap.String("device_id", reading.DeviceID),
		zap.String("record_id", recordID),
	)

	return nil
}
