package dispatcher

import (
	"context"
	"errors"
	"time"

	"aquasense-alert/internal/models"

	"go.uber.org/zap"
)

// 推送失败分类
var (
	ErrInvalidToken = errors.New("invalid push token")
	ErrTransient    = errors.New("transient push failure")
)

// PushSender 推送通知通道（外部协作方）
type PushSender interface {
	Send(ctx context.Context, token, title, body string) error
}

// VoiceCaller 语音升级通道（外部协作方）
type VoiceCaller interface {
	PlaceCall(ctx context.Context, number, scriptRef string) (string, error)
}

// RecipientSource 接收人目录
type RecipientSource interface {
	QueryRecipients(ctx context.Context, deviceID string) ([]models.Recipient, error)
}

// Outcome 分发结果
// "无人可通知" 和 "全部推送失败" 是不同情况，调用方据此区分计数
type Outcome int

const (
	OutcomeDelivered    Outcome = iota // 至少一条推送成功
	OutcomeNoRecipients                // 设备没有带token的接收人
	OutcomeFailed                      // 目录查询失败，或所有推送均失败
)

// Dispatcher 通知分发器
// 仅在 new-alert 迁移时被调用；单个接收人的失败不影响其余接收人
type Dispatcher struct {
	directory RecipientSource
	push      PushSender
	voice     VoiceCaller // 可为 nil（不启用语音升级）

	pushTitle string
	scriptRef string
	callDelay time.Duration
	logger    *zap.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(
	directory RecipientSource,
	push PushSender,
	voice VoiceCaller,
	pushTitle string,
	scriptRef string,
	callDelay time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		directory: directory,
		push:      push,
		voice:     voice,
		pushTitle: pushTitle,
		scriptRef: scriptRef,
		callDelay: callDelay,
		logger:    logger,
	}
}

// Dispatch 将报警消息分发给设备的所有注册接收人
// 接收人在分发时重新查询目录（不走配置缓存）
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID, message string) Outcome {
	recipients, err := d.directory.QueryRecipients(ctx, deviceID)
	if err != nil {
		d.logger.Error("Failed to query recipients for dispatch",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return OutcomeFailed
	}

	if len(recipients) == 0 {
		d.logger.Warn("No recipients registered for device",
			zap.String("device_id", deviceID),
		)
		return OutcomeNoRecipients
	}

	attempted := 0
	succeeded := false
	for _, r := range recipients {
		if r.FCMToken == nil || *r.FCMToken == "" {
			continue
		}
		attempted++

		if err := d.push.Send(ctx, *r.FCMToken, d.pushTitle, message); err != nil {
			// 单个接收人失败（含无效token）只记录，继续发送其余接收人
			if errors.Is(err, ErrInvalidToken) {
				d.logger.Warn("Push token invalid",
					zap.String("device_id", deviceID),
					zap.String("user_id", r.UserID),
				)
			} else {
				d.logger.Error("Failed to send push notification",
					zap.String("device_id", deviceID),
					zap.String("user_id", r.UserID),
					zap.Error(err),
				)
			}
			continue
		}
		succeeded = true
	}

	// 语音升级在后台顺序执行，不阻塞采集流水线
	if d.voice != nil {
		numbers := collectGuardianNumbers(recipients)
		if len(numbers) > 0 {
			go d.escalate(context.Background(), deviceID, numbers)
		}
	}

	switch {
	case succeeded:
		return OutcomeDelivered
	case attempted == 0:
		// 有接收人记录但都没有推送token
		d.logger.Warn("No push tokens registered for device",
			zap.String("device_id", deviceID),
		)
		return OutcomeNoRecipients
	default:
		return OutcomeFailed
	}
}

// escalate 顺序拨打升级名单，呼叫之间保持固定间隔避免打爆通道
// 单次呼叫失败不中断后续呼叫
func (d *Dispatcher) escalate(ctx context.Context, deviceID string, numbers []string) {
	for i, number := range numbers {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.callDelay):
			}
		}

		callID, err := d.voice.PlaceCall(ctx, number, d.scriptRef)
		if err != nil {
			d.logger.Error("Failed to place escalation call",
				zap.String("device_id", deviceID),
				zap.String("number", number),
				zap.Error(err),
			)
			continue
		}

		d.logger.Info("Escalation call placed",
			zap.String("device_id", deviceID),
			zap.String("number", number),
			zap.String("call_id", callID),
		)
	}
}

// collectGuardianNumbers 汇总去重所有接收人的监护电话
func collectGuardianNumbers(recipients []models.Recipient) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, r := range recipients {
		for _, number := range r.GuardianNumbers() {
			if !seen[number] {
				seen[number] = true
				numbers = append(numbers, number)
			}
		}
	}
	return numbers
}
