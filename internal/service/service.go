package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"aquasense-alert/internal/alert"
	"aquasense-alert/internal/cache"
	"aquasense-alert/internal/config"
	"aquasense-alert/internal/dispatcher"
	"aquasense-alert/internal/ingest"
	"aquasense-alert/internal/observability"
	"aquasense-alert/internal/repository"
	"aquasense-alert/internal/transport"
	"aquasense-alert/internal/transport/ws"
	"aquasense-alert/pkg/database"
	pkgmqtt "aquasense-alert/pkg/mqtt"
	"aquasense-alert/pkg/redisx"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AlertService 遥测报警服务（整合各层）
type AlertService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *pkgmqtt.Client
	logger      *zap.Logger

	// 各层组件
	recipientRepo *repository.RecipientRepository
	telemetryRepo *repository.TelemetryRepository
	rollingStore  *cache.RollingStore
	settingsCache *cache.SettingsCache
	stateMachine  *alert.StateMachine
	dispatcher    *dispatcher.Dispatcher
	publisher     *alert.StreamPublisher
	hub           *ws.Hub
	metrics       *observability.Metrics
	pipeline      *ingest.Pipeline
	mqttConsumer  *transport.MQTTConsumer
	httpServer    *http.Server
}

// NewAlertService 创建报警服务
func NewAlertService(cfg *config.Config, logger *zap.Logger) (*AlertService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisx.NewClient(&cfg.Redis)
	if err := redisx.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := pkgmqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
	}

	// 4. 创建 Repository 层
	recipientRepo := repository.NewRecipientRepository(db, logger)
	telemetryRepo := repository.NewTelemetryRepository(db, logger)

	// 5. 创建缓存层
	rollingStore := cache.NewRollingStore(cfg.RetentionWindow(), cfg.LivenessTimeout(), nil)
	settingsCache := cache.NewSettingsCache(recipientRepo, logger)

	// 6. 创建报警层
	stateMachine := alert.NewStateMachine(nil, logger)
	publisher := alert.NewStreamPublisher(redisClient, cfg.Alert.Stream, logger)

	// 7. 创建通知通道（未配置的通道不启用）
	var push dispatcher.PushSender
	if cfg.Notify.FCMServerKey != "" {
		push = dispatcher.NewFCMSender(cfg.Notify.FCMEndpoint, cfg.Notify.FCMServerKey, logger)
	} else {
		logger.Warn("FCM server key not configured, push notifications disabled")
		push = noopPushSender{logger: logger}
	}

	var voice dispatcher.VoiceCaller
	if cfg.Notify.VoiceURL != "" {
		voice = dispatcher.NewHTTPVoiceCaller(cfg.Notify.VoiceURL, cfg.Notify.VoiceToken, logger)
	} else {
		logger.Warn("Voice gateway not configured, call escalation disabled")
	}

	disp := dispatcher.NewDispatcher(
		recipientRepo,
		push,
		voice,
		cfg.Alert.PushTitle,
		cfg.Alert.CallScriptRef,
		cfg.CallDelay(),
		logger,
	)

	// 8. 创建广播中心与指标
	hub := ws.NewHub(logger)
	metrics := observability.NewMetrics()

	// 9. 创建采集流水线
	pipeline := ingest.NewPipeline(
		ingest.NewNormalizer(nil),
		rollingStore,
		settingsCache,
		stateMachine,
		disp,
		telemetryRepo,
		publisher,
		hub,
		metrics,
		logger,
		nil,
	)

	// 10. 创建入口（HTTP + MQTT 共用流水线）
	handler := transport.NewAPIHandler(pipeline, rollingStore, settingsCache, recipientRepo, hub, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      transport.NewRouter(handler, metrics),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	mqttConsumer := transport.NewMQTTConsumer(mqttClient, cfg.Alert.Topic, cfg.MQTT.QoS, pipeline, logger)

	return &AlertService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		recipientRepo: recipientRepo,
		telemetryRepo: telemetryRepo,
		rollingStore:  rollingStore,
		settingsCache: settingsCache,
		stateMachine:  stateMachine,
		dispatcher:    disp,
		publisher:     publisher,
		hub:           hub,
		metrics:       metrics,
		pipeline:      pipeline,
		mqttConsumer:  mqttConsumer,
		httpServer:    httpServer,
	}, nil
}

// Start 启动服务（阻塞直到 HTTP 服务退出）
func (s *AlertService) Start(ctx context.Context) error {
	s.logger.Info("Starting alert service",
		zap.String("http_addr", s.config.HTTP.Addr),
		zap.String("telemetry_topic", s.config.Alert.Topic),
	)

	go s.hub.Run()

	if err := s.mqttConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start mqtt consumer: %w", err)
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *AlertService) Stop() error {
	s.logger.Info("Stopping alert service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown http server",
			zap.Error(err),
		)
	}

	s.hub.Stop()

	s.mqttConsumer.Stop()
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// noopPushSender 推送未配置时的占位通道，记录后丢弃
type noopPushSender struct {
	logger *zap.Logger
}

func (n noopPushSender) Send(_ context.Context, _, _, body string) error {
	n.logger.Info("Push channel disabled, dropping notification",
		zap.String("body", body),
	)
	return nil
}
