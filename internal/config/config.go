package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"aquasense-alert/pkg/database"
	"aquasense-alert/pkg/mqtt"
	"aquasense-alert/pkg/redisx"

	"gopkg.in/yaml.v3"
)

// Config 遥测报警服务配置
type Config struct {
	Database database.Config `yaml:"database"`
	Redis    redisx.Config   `yaml:"redis"`
	MQTT     mqtt.Config     `yaml:"mqtt"`

	HTTP struct {
		Addr string `yaml:"addr"` // HTTP监听地址，如 ":8080"
	} `yaml:"http"`

	// 报警服务特定配置
	Alert struct {
		RetentionHours   int    `yaml:"retention_hours"`    // 历史窗口保留时长（小时），默认 48
		LivenessSeconds  int    `yaml:"liveness_seconds"`   // 实时数据有效时长（秒），默认 30
		CallDelaySeconds int    `yaml:"call_delay_seconds"` // 语音升级呼叫间隔（秒），默认 60
		Stream           string `yaml:"stream"`             // 报警事件输出 Stream，如 "aquasense:alerts"
		Topic            string `yaml:"topic"`              // 遥测订阅主题，如 "aquasense/telemetry"
		PushTitle        string `yaml:"push_title"`         // 推送通知标题
		CallScriptRef    string `yaml:"call_script_ref"`    // 语音呼叫脚本引用
	} `yaml:"alert"`

	// 通知通道配置，留空则对应通道不启用
	Notify struct {
		FCMEndpoint  string `yaml:"fcm_endpoint"`   // FCM HTTP 端点
		FCMServerKey string `yaml:"fcm_server_key"` // FCM 服务端密钥，为空不启用推送通道
		VoiceURL     string `yaml:"voice_url"`      // 语音呼叫网关地址，为空不启用语音升级
		VoiceToken   string `yaml:"voice_token"`    // 语音网关鉴权令牌
	} `yaml:"notify"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// RetentionWindow 历史窗口保留时长
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Alert.RetentionHours) * time.Hour
}

// LivenessTimeout 实时数据有效时长
func (c *Config) LivenessTimeout() time.Duration {
	return time.Duration(c.Alert.LivenessSeconds) * time.Second
}

// CallDelay 语音升级呼叫间隔
func (c *Config) CallDelay() time.Duration {
	return time.Duration(c.Alert.CallDelaySeconds) * time.Second
}

// Load 加载配置
// 先从环境变量加载（带默认值），再用 CONFIG_FILE 指定的 YAML 文件覆盖
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	if cfg.Database.Port, err = getEnvInt("DB_PORT", 5432); err != nil {
		return nil, err
	}
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "aquasense")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	if cfg.Database.MaxConns, err = getEnvInt("DB_MAX_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdle, err = getEnvInt("DB_MAX_IDLE", 5); err != nil {
		return nil, err
	}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "aquasense-alert")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	if cfg.Alert.RetentionHours, err = getEnvInt("ALERT_RETENTION_HOURS", 48); err != nil {
		return nil, err
	}
	if cfg.Alert.LivenessSeconds, err = getEnvInt("ALERT_LIVENESS_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.Alert.CallDelaySeconds, err = getEnvInt("ALERT_CALL_DELAY_SECONDS", 60); err != nil {
		return nil, err
	}
	cfg.Alert.Stream = getEnv("ALERT_STREAM", "aquasense:alerts")
	cfg.Alert.Topic = getEnv("TELEMETRY_TOPIC", "aquasense/telemetry")
	cfg.Alert.PushTitle = getEnv("ALERT_PUSH_TITLE", "AquaSense Alert")
	cfg.Alert.CallScriptRef = getEnv("ALERT_CALL_SCRIPT", "threshold-violation")

	cfg.Notify.FCMEndpoint = getEnv("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	cfg.Notify.FCMServerKey = getEnv("FCM_SERVER_KEY", "")
	cfg.Notify.VoiceURL = getEnv("VOICE_GATEWAY_URL", "")
	cfg.Notify.VoiceToken = getEnv("VOICE_GATEWAY_TOKEN", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// YAML 文件覆盖（可选）
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 解析整数环境变量，非法值报错而不是静默回退默认值
func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %q", key, raw)
	}
	return value, nil
}
