package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentrag/apps/backend/internal/middleware"
)

func TestHandler_HandleMessage_MissingSessionID(t *testing.T) {
	handler := NewHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp/messages", nil)
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	errMap, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected error object in response")
	assert.Equal(t, "VALIDATION_ERROR", errMap["code"])
}

func TestHandler_HandleMessage_SessionNotFound(t *testing.T) {
	handler := NewHandler(nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=unknown-session", nil)
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_HandleMessage_InvalidJSON(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	handler.sessions["test-session"] = make(chan string, 1)

	req := httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=test-session", bytes.NewBufferString("{invalid-json"))
	req = req.WithContext(middleware.WithCorrelationID(req.Context(), "corr-9"))
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "corr-9", resp["correlationId"])
	errMap, _ := resp["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_JSON", errMap["code"])
}

func TestHandler_HandleMessage_DeliversToSession(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	msgChan := make(chan string, 1)
	handler.sessions["test-session"] = msgChan

	body, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "method": "ping", "id": 1})
	req := httptest.NewRequest(http.MethodPost, "/mcp/messages?sessionId=test-session", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case msg := <-msgChan:
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal([]byte(msg), &resp))
		assert.EqualValues(t, 1, resp.ID)
		assert.Nil(t, resp.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("no response delivered to session")
	}
}

func TestHandler_ServeHTTP(t *testing.T) {
	handler := NewHandler(nil, nil, nil)

	t.Run("Parse Error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("nope")))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		errMap, _ := resp.Error.(map[string]interface{})
		assert.EqualValues(t, ErrParse, errMap["code"])
	})

	t.Run("Notification", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"jsonrpc":"2.0","method":"notifications/initialized"}`
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestHandler_SSE_Session(t *testing.T) {
	handler := NewHandler(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/mcp/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.HandleSSE(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool {
		handler.sessionsLock.RLock()
		defer handler.sessionsLock.RUnlock()
		return len(handler.sessions) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Contains(t, rec.Body.String(), "event: endpoint")
	assert.Contains(t, rec.Body.String(), "/mcp/messages?sessionId=")
	assert.Empty(t, handler.sessions)
}
