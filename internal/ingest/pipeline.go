package ingest

import (
	"context"
	"time"

	"aquasense-alert/internal/alert"
	"aquasense-alert/internal/cache"
	"aquasense-alert/internal/dispatcher"
	"aquasense-alert/internal/evaluator"
	"aquasense-alert/internal/models"
	"aquasense-alert/internal/observability"

	"go.uber.org/zap"
)

// DurableStore 持久化存储（外部协作方）
type DurableStore interface {
	Insert(ctx context.Context, reading *models.Reading) error
}

// AlertPublisher 报警事件发布（Redis Stream）
type AlertPublisher interface {
	PublishAlert(ctx context.Context, event *models.AlertEvent) error
}

// AlertDispatcher 通知分发
type AlertDispatcher interface {
	Dispatch(ctx context.Context, deviceID, message string) dispatcher.Outcome
}

// AlertBroadcaster 报警事件的进程内广播（WebSocket）
type AlertBroadcaster interface {
	BroadcastAlert(event interface{})
}

// Pipeline 采集流水线
// 归一化 → 滚动缓存写入 → 持久化 → 配置解析 → 阈值评估 → 状态机 → 通知分发
// 缓存写入是第一步且非阻塞，后续慢步骤失败不影响缓存正确性
type Pipeline struct {
	normalizer  *Normalizer
	store       *cache.RollingStore
	settings    *cache.SettingsCache
	states      *alert.StateMachine
	dispatcher  AlertDispatcher
	durable     DurableStore     // 可为 nil（无持久化）
	publisher   AlertPublisher   // 可为 nil
	broadcaster AlertBroadcaster // 可为 nil
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewPipeline 创建采集流水线
func NewPipeline(
	normalizer *Normalizer,
	store *cache.RollingStore,
	settings *cache.SettingsCache,
	states *alert.StateMachine,
	disp AlertDispatcher,
	durable DurableStore,
	publisher AlertPublisher,
	broadcaster AlertBroadcaster,
	metrics *observability.Metrics,
	logger *zap.Logger,
	now func() time.Time,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		normalizer:  normalizer,
		store:       store,
		settings:    settings,
		states:      states,
		dispatcher:  disp,
		durable:     durable,
		publisher:   publisher,
		broadcaster: broadcaster,
		metrics:     metrics,
		logger:      logger,
		now:         now,
	}
}

// Ingest 处理一条入站遥测
// 只有校验失败会返回错误；通知/持久化失败记录后吞掉，调用方总能得到缓存写入的确认
func (p *Pipeline) Ingest(ctx context.Context, deviceID string, payload map[string]interface{}) (*models.Reading, error) {
	reading, err := p.normalizer.Normalize(deviceID, payload)
	if err != nil {
		p.metrics.ValidationFailure()
		return nil, err
	}

	// 缓存写入在任何慢I/O之前完成
	p.store.Put(reading)
	p.metrics.ReadingIngested()

	// 持久化降级不影响实时/历史读取（读数已在内存缓存）
	if p.durable != nil {
		if err := p.durable.Insert(ctx, reading); err != nil {
			p.metrics.StoreFailure()
			p.logger.Error("Failed to persist reading, serving from cache only",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err),
			)
		}
	}

	settings, err := p.settings.Get(ctx, reading.DeviceID)
	if err != nil {
		p.logger.Error("Failed to resolve device settings, skipping evaluation",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)
		return reading, nil
	}
	if settings == nil {
		p.logger.Debug("No settings registered for device, skipping evaluation",
			zap.String("device_id", reading.DeviceID),
		)
		return reading, nil
	}

	report := evaluator.Evaluate(reading, settings)

	switch p.states.Apply(reading.DeviceID, report.Violated()) {
	case alert.TransitionNewAlert:
		p.metrics.AlertFired()
		event := alert.NewViolationEvent(reading.DeviceID, report, p.now())
		p.handleNewAlert(ctx, event)

	case alert.TransitionRecovered:
		p.metrics.AlertRecovered()
		event := alert.NewRecoveredEvent(reading.DeviceID, p.now())
		p.publishEvent(ctx, event)
	}

	return reading, nil
}

// handleNewAlert 处理 new-alert 迁移：分发通知并发布事件
func (p *Pipeline) handleNewAlert(ctx context.Context, event *models.AlertEvent) {
	p.logger.Info("Alert event created",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("message", event.Message),
	)

	if p.dispatcher != nil {
		switch p.dispatcher.Dispatch(ctx, event.DeviceID, event.Message) {
		case dispatcher.OutcomeFailed:
			// 无人可通知不算分发失败，只有实际推送全部失败才计数
			p.metrics.DispatchFailure()
		case dispatcher.OutcomeNoRecipients:
			p.logger.Warn("Alert fired but device has no reachable recipients",
				zap.String("device_id", event.DeviceID),
			)
		}
	}

	p.publishEvent(ctx, event)
}

// publishEvent 发布到 Stream 并广播，失败只记录
func (p *Pipeline) publishEvent(ctx context.Context, event *models.AlertEvent) {
	if p.publisher != nil {
		if err := p.publisher.PublishAlert(ctx, event); err != nil {
			p.logger.Error("Failed to publish alert event",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
		}
	}

	if p.broadcaster != nil {
		p.broadcaster.BroadcastAlert(event)
	}
}
