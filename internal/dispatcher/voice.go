package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPVoiceCaller 通过语音网关的 HTTP 接口发起外呼
type HTTPVoiceCaller struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPVoiceCaller 创建语音呼叫通道
func NewHTTPVoiceCaller(url, token string, logger *zap.Logger) *HTTPVoiceCaller {
	return &HTTPVoiceCaller{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

type voiceCallRequest struct {
	Number    string `json:"number"`
	ScriptRef string `json:"script_ref"`
}

type voiceCallResponse struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// PlaceCall 对单个号码发起一次呼叫，返回网关分配的呼叫ID
func (c *HTTPVoiceCaller) PlaceCall(ctx context.Context, number, scriptRef string) (string, error) {
	payload, err := json.Marshal(voiceCallRequest{
		Number:    number,
		ScriptRef: scriptRef,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal call payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("voice gateway returned status %d", resp.StatusCode)
	}

	var result voiceCallResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse call response: %w", err)
	}
	if result.CallID == "" {
		return "", fmt.Errorf("voice gateway returned empty call id")
	}

	return result.CallID, nil
}
