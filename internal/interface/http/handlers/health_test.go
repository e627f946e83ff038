package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgentHealthChecker_Statuses(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	checker := NewAgentHealthChecker(map[string]string{
		"concepts":    healthy.URL,
		"exercise":    unhealthy.URL,
		"debug-coach": "http://127.0.0.1:1", // nothing listens here
	}, time.Second)

	results := checker.Check(context.Background())
	assert.Len(t, results, 3)

	assert.Equal(t, StatusHealthy, results["concepts"].Status)
	assert.Equal(t, http.StatusOK, results["concepts"].Code)
	assert.Empty(t, results["concepts"].Error)

	assert.Equal(t, StatusUnhealthy, results["exercise"].Status)
	assert.Equal(t, http.StatusServiceUnavailable, results["exercise"].Code)

	assert.Equal(t, StatusUnreachable, results["debug-coach"].Status)
	assert.Zero(t, results["debug-coach"].Code)
	assert.NotEmpty(t, results["debug-coach"].Error)
}

func TestAgentHealthHandler(t *testing.T) {
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer agent.Close()

	checker := NewAgentHealthChecker(map[string]string{"concepts": agent.URL}, time.Second)
	handler := AgentHealthHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/health/agents", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]AgentStatus
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusHealthy, body["concepts"].Status)
}

func TestAgentHealthHandler_MethodNotAllowed(t *testing.T) {
	handler := AgentHealthHandler(NewAgentHealthChecker(nil, time.Second))

	req := httptest.NewRequest(http.MethodPost, "/health/agents", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler(func() bool { return true }, "learning.events")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["consumer_enabled"])
	assert.Equal(t, "learning.events", body["topic"])
}
