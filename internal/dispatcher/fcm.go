package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FCMSender 通过 FCM HTTP 接口发送推送通知
type FCMSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
	logger    *zap.Logger
}

// NewFCMSender 创建 FCM 推送通道
func NewFCMSender(endpoint, serverKey string, logger *zap.Logger) *FCMSender {
	return &FCMSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

type fcmRequest struct {
	To           string          `json:"to"`
	Notification fcmNotification `json:"notification"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		Error string `json:"error"`
	} `json:"results"`
}

// Send 发送一条推送
// 无效 token 返回 ErrInvalidToken，服务端临时故障返回 ErrTransient
func (s *FCMSender) Send(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal(fcmRequest{
		To:           token,
		Notification: fcmNotification{Title: title, Body: body},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: fcm returned %d", ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm returned unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	var result fcmResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to parse push response: %w", err)
	}

	if result.Failure > 0 && len(result.Results) > 0 {
		reason := result.Results[0].Error
		// 这两类错误表示 token 已失效，应触发上层的 token 清理路径
		if reason == "InvalidRegistration" || reason == "NotRegistered" {
			return fmt.Errorf("%w: %s", ErrInvalidToken, reason)
		}
		if strings.Contains(reason, "Unavailable") || strings.Contains(reason, "InternalServerError") {
			return fmt.Errorf("%w: %s", ErrTransient, reason)
		}
		return fmt.Errorf("push rejected: %s", reason)
	}

	return nil
}
