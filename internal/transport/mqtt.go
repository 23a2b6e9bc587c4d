package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"aquasense-alert/internal/ingest"
	pkgmqtt "aquasense-alert/pkg/mqtt"

	"go.uber.org/zap"
)

// MQTTConsumer 订阅遥测主题，与 HTTP 入口共用同一流水线
type MQTTConsumer struct {
	client   *pkgmqtt.Client
	topic    string
	qos      byte
	pipeline *ingest.Pipeline
	logger   *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(client *pkgmqtt.Client, topic string, qos byte, pipeline *ingest.Pipeline, logger *zap.Logger) *MQTTConsumer {
	return &MQTTConsumer{
		client:   client,
		topic:    topic,
		qos:      qos,
		pipeline: pipeline,
		logger:   logger,
	}
}

// Start 订阅主题
func (c *MQTTConsumer) Start() error {
	if err := c.client.Subscribe(c.topic, c.qos, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe telemetry topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.topic),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.client.Unsubscribe(c.topic); err != nil {
		c.logger.Error("Failed to unsubscribe telemetry topic", zap.Error(err))
	}
}

// handleMessage 处理单条总线消息，失败只记录不中断订阅
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	var body map[string]interface{}
	if err := json.Unmarshal(payload, &body); err != nil {
		return fmt.Errorf("failed to parse telemetry message: %w", err)
	}

	deviceID, _ := body["device_id"].(string)

	if _, err := c.pipeline.Ingest(context.Background(), deviceID, body); err != nil {
		return fmt.Errorf("failed to ingest telemetry from %s: %w", topic, err)
	}

	return nil
}
