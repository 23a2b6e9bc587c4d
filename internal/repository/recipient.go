package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"aquasense-alert/internal/models"

	"go.uber.org/zap"
)

// RecipientRepository 接收人目录仓库（recipients 表）
type RecipientRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecipientRepository 创建接收人仓库
func NewRecipientRepository(db *sql.DB, logger *zap.Logger) *RecipientRepository {
	return &RecipientRepository{
		db:     db,
		logger: logger,
	}
}

// QueryRecipients 查询设备的所有注册接收人
// 按 user_id 排序保证 "首条记录定义配置" 的确定性
func (r *RecipientRepository) QueryRecipients(ctx context.Context, deviceID string) ([]models.Recipient, error) {
	query := `
		SELECT
			user_id,
			name,
			fcm_token,
			guardian_number1,
			guardian_number2,
			device_id,
			lower_bound_line1,
			lower_bound_line2,
			units_per_line1,
			units_per_line2
		FROM recipients
		WHERE device_id = $1
		ORDER BY user_id
	`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, *recipient)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}

	return recipients, nil
}

// QueryRecipient 按用户ID查询单个接收人
func (r *RecipientRepository) QueryRecipient(ctx context.Context, userID string) (*models.Recipient, error) {
	query := `
		SELECT
			user_id,
			name,
			fcm_token,
			guardian_number1,
			guardian_number2,
			device_id,
			lower_bound_line1,
			lower_bound_line2,
			units_per_line1,
			units_per_line2
		FROM recipients
		WHERE user_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, userID)
	recipient, err := scanRecipient(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("recipient not found: %s", userID)
		}
		return nil, fmt.Errorf("failed to query recipient: %w", err)
	}

	return recipient, nil
}

// BatchUpdateSettings 更新设备下所有接收人记录的阈值字段
// 由配置更新命令调用，先于缓存合并持久化
func (r *RecipientRepository) BatchUpdateSettings(ctx context.Context, deviceID string, patch *models.SettingsPatch) (int64, error) {
	if patch.Empty() {
		return 0, nil
	}

	var sets []string
	var args []interface{}
	arg := 1

	if patch.LowerBoundLine1 != nil {
		sets = append(sets, fmt.Sprintf("lower_bound_line1 = $%d", arg))
		args = append(args, *patch.LowerBoundLine1)
		arg++
	}
	if patch.LowerBoundLine2 != nil {
		sets = append(sets, fmt.Sprintf("lower_bound_line2 = $%d", arg))
		args = append(args, *patch.LowerBoundLine2)
		arg++
	}
	if patch.UnitsPerLine1 != nil {
		sets = append(sets, fmt.Sprintf("units_per_line1 = $%d", arg))
		args = append(args, *patch.UnitsPerLine1)
		arg++
	}
	if patch.UnitsPerLine2 != nil {
		sets = append(sets, fmt.Sprintf("units_per_line2 = $%d", arg))
		args = append(args, *patch.UnitsPerLine2)
		arg++
	}

	query := fmt.Sprintf("UPDATE recipients SET %s WHERE device_id = $%d", strings.Join(sets, ", "), arg)
	args = append(args, deviceID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to batch update settings: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}

	r.logger.Debug("Batch updated recipient settings",
		zap.String("device_id", deviceID),
		zap.Int64("rows_affected", affected),
	)

	return affected, nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecipient(s scanner) (*models.Recipient, error) {
	var recipient models.Recipient
	var fcmToken, guardian1, guardian2 sql.NullString

	err := s.Scan(
		&recipient.UserID,
		&recipient.Name,
		&fcmToken,
		&guardian1,
		&guardian2,
		&recipient.DeviceID,
		&recipient.LowerBoundLine1,
		&recipient.LowerBoundLine2,
		&recipient.UnitsPerLine1,
		&recipient.UnitsPerLine2,
	)
	if err != nil {
		return nil, err
	}

	if fcmToken.Valid {
		recipient.FCMToken = &fcmToken.String
	}
	if guardian1.Valid {
		recipient.GuardianNumber1 = &guardian1.String
	}
	if guardian2.Valid {
		recipient.GuardianNumber2 = &guardian2.String
	}

	return &recipient, nil
}
