package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFCMSender_Success(t *testing.T) {
	var gotAuth string
	var gotReq fcmRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(fcmResponse{Success: 1})
	}))
	defer server.Close()

	sender := NewFCMSender(server.URL, "server-key", zap.NewNop())
	err := sender.Send(context.Background(), "token-1", "AquaSense Alert", "Line1 active units 1 below lower bound 3")

	require.NoError(t, err)
	assert.Equal(t, "key=server-key", gotAuth)
	assert.Equal(t, "token-1", gotReq.To)
	assert.Equal(t, "AquaSense Alert", gotReq.Notification.Title)
}

func TestFCMSender_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(fcmResponse{
			Failure: 1,
			Results: []struct {
				Error string `json:"error"`
			}{{Error: "NotRegistered"}},
		})
	}))
	defer server.Close()

	sender := NewFCMSender(server.URL, "server-key", zap.NewNop())
	err := sender.Send(context.Background(), "stale-token", "title", "body")

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFCMSender_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sender := NewFCMSender(server.URL, "server-key", zap.NewNop())
	err := sender.Send(context.Background(), "token-1", "title", "body")

	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPVoiceCaller_Success(t *testing.T) {
	var gotReq voiceCallRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gw-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(voiceCallResponse{CallID: "call-42", Status: "queued"})
	}))
	defer server.Close()

	caller := NewHTTPVoiceCaller(server.URL, "gw-token", zap.NewNop())
	callID, err := caller.PlaceCall(context.Background(), "+15550001", "threshold-violation")

	require.NoError(t, err)
	assert.Equal(t, "call-42", callID)
	assert.Equal(t, "+15550001", gotReq.Number)
	assert.Equal(t, "threshold-violation", gotReq.ScriptRef)
}

func TestHTTPVoiceCaller_GatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	caller := NewHTTPVoiceCaller(server.URL, "gw-token", zap.NewNop())
	_, err := caller.PlaceCall(context.Background(), "+15550001", "threshold-violation")

	assert.Error(t, err)
}

func TestHTTPVoiceCaller_EmptyCallID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(voiceCallResponse{Status: "queued"})
	}))
	defer server.Close()

	caller := NewHTTPVoiceCaller(server.URL, "gw-token", zap.NewNop())
	_, err := caller.PlaceCall(context.Background(), "+15550001", "threshold-violation")

	assert.Error(t, err)
}
