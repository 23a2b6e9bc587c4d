package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"aquasense-alert/internal/cache"
	"aquasense-alert/internal/ingest"
	"aquasense-alert/internal/models"
	"aquasense-alert/internal/observability"
	"aquasense-alert/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SettingsStore 配置的持久化端（repository 层实现）
type SettingsStore interface {
	BatchUpdateSettings(ctx context.Context, deviceID string, patch *models.SettingsPatch) (int64, error)
}

// APIHandler HTTP 接口处理器
type APIHandler struct {
	pipeline *ingest.Pipeline
	store    *cache.RollingStore
	settings *cache.SettingsCache
	durable  SettingsStore
	hub      *ws.Hub // 可为 nil
	logger   *zap.Logger
}

// NewAPIHandler 创建接口处理器
func NewAPIHandler(
	pipeline *ingest.Pipeline,
	store *cache.RollingStore,
	settings *cache.SettingsCache,
	durable SettingsStore,
	hub *ws.Hub,
	logger *zap.Logger,
) *APIHandler {
	return &APIHandler{
		pipeline: pipeline,
		store:    store,
		settings: settings,
		durable:  durable,
		hub:      hub,
		logger:   logger,
	}
}

// NewRouter 组装路由
func NewRouter(h *APIHandler, metrics *observability.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/api/telemetry", h.HandleIngest)
	r.Get("/api/devices/{deviceID}/live", h.HandleLive)
	r.Get("/api/devices/{deviceID}/history", h.HandleHistory)
	r.Patch("/api/devices/{deviceID}/settings", h.HandleUpdateSettings)

	if h.hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
			ws.ServeWS(h.hub, w, req)
		})
	}
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}

// HandleIngest 接收一条遥测（HTTP 入口，与 MQTT 共用流水线）
func (h *APIHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	deviceID, _ := payload["device_id"].(string)

	reading, err := h.pipeline.Ingest(r.Context(), deviceID, payload)
	if err != nil {
		var vErr *ingest.ValidationError
		if errors.As(err, &vErr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
			return
		}
		h.logger.Error("Ingestion failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":    "accepted",
		"device_id": reading.DeviceID,
		"timestamp": reading.Timestamp,
	})
}

// HandleLive 查询设备实时读数
// 缓存为空或超时返回 no_data 状态，而不是错误
func (h *APIHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	reading, ok := h.store.GetLive(deviceID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "no_data",
			"device_id": deviceID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"reading": reading,
	})
}

// HandleHistory 查询设备当前窗口内的全部历史读数
func (h *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	history := h.store.GetHistory(deviceID)
	if history == nil {
		history = []models.Reading{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device_id": deviceID,
		"count":     len(history),
		"readings":  history,
	})
}

// HandleUpdateSettings 更新设备阈值配置
// 先持久化到目录，成功后合并进缓存
func (h *APIHandler) HandleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var patch models.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if patch.Empty() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no settings fields provided"})
		return
	}

	affected, err := h.durable.BatchUpdateSettings(r.Context(), deviceID, &patch)
	if err != nil {
		h.logger.Error("Failed to persist settings update",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to persist settings"})
		return
	}

	h.settings.Update(deviceID, &patch)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "updated",
		"device_id":     deviceID,
		"rows_affected": affected,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
