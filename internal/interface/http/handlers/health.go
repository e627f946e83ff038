// Package handlers contains HTTP handler implementations for the worker's
// observability surface.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGENT HEALTH
// Probes each agent service's /health endpoint and reports per-agent status
// keyed by agent name. Consumed by dashboards and the deployment's readiness
// checks; the pipeline core does not depend on it.
// ══════════════════════════════════════════════════════════════════════════════

// Agent status values.
const (
	StatusHealthy     = "healthy"
	StatusUnhealthy   = "unhealthy"
	StatusUnreachable = "unreachable"
)

// AgentStatus is the health of a single agent service.
type AgentStatus struct {
	// Status is healthy, unhealthy, or unreachable.
	Status string `json:"status"`

	// Code is the HTTP status code, when a response was received.
	Code int `json:"code,omitempty"`

	// Error describes why the agent was unreachable.
	Error string `json:"error,omitempty"`
}

// AgentHealthChecker probes a fixed set of agent services.
type AgentHealthChecker struct {
	agents  map[string]string // name -> base URL
	client  *http.Client
	timeout time.Duration
}

// NewAgentHealthChecker creates a checker for the given agents
// (name -> base URL, probed at <base>/health).
func NewAgentHealthChecker(agents map[string]string, timeout time.Duration) *AgentHealthChecker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &AgentHealthChecker{
		agents:  agents,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Check probes all agents concurrently and returns their statuses keyed
// by agent name.
func (c *AgentHealthChecker) Check(ctx context.Context) map[string]AgentStatus {
	results := make(map[string]AgentStatus, len(c.agents))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, baseURL := range c.agents {
		wg.Add(1)
		go func(name, baseURL string) {
			defer wg.Done()
			status := c.probe(ctx, baseURL)
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, baseURL)
	}
	wg.Wait()

	return results
}

func (c *AgentHealthChecker) probe(ctx context.Context, baseURL string) AgentStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return AgentStatus{Status: StatusUnreachable, Error: err.Error()}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return AgentStatus{Status: StatusUnreachable, Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return AgentStatus{Status: StatusHealthy, Code: resp.StatusCode}
	}
	return AgentStatus{Status: StatusUnhealthy, Code: resp.StatusCode}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// AgentHealthHandler serves GET /health/agents.
func AgentHealthHandler(checker *AgentHealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, checker.Check(r.Context()))
	}
}

// LivenessHandler serves GET /healthz for the worker process itself.
// consumerEnabled and topic describe the consumer's observable state.
func LivenessHandler(consumerEnabled func() bool, topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":           "ok",
			"consumer_enabled": consumerEnabled(),
			"topic":            topic,
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error":"encode failure"}`)
	}
}
