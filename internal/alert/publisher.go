package alert

import (
	"context"
	"fmt"

	"aquasense-alert/internal/models"
	"aquasense-alert/pkg/redisx"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// StreamPublisher 将报警事件发布到 Redis Stream，供下游服务消费
type StreamPublisher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

// NewStreamPublisher 创建事件发布器
func NewStreamPublisher(client *redis.Client, stream string, logger *zap.Logger) *StreamPublisher {
	return &StreamPublisher{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// PublishAlert 发布一条报警事件
func (p *StreamPublisher) PublishAlert(ctx context.Context, event *models.AlertEvent) error {
	id, err := redisx.PublishJSONToStream(ctx, p.client, p.stream, event)
	if err != nil {
		return fmt.Errorf("failed to publish alert event %s: %w", event.EventID, err)
	}

	p.logger.Debug("Published alert event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("stream_id", id),
	)

	return nil
}
