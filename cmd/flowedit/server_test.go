package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/flowedit/config"
	"github.com/BaSui01/flowedit/transport"
	"github.com/BaSui01/flowedit/types"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = "memory"
	cfg.Server.TaskDelay = 0
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.hub.Start(ctx))

	ts := httptest.NewServer(s.Handler(ctx))
	t.Cleanup(func() {
		s.hub.CloseAll()
		ts.Close()
		cancel()
		s.hub.Stop()
		s.close()
	})
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Endpoints(t *testing.T) {
	_, ts := startServer(t, testConfig())

	code, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "healthy")

	code, _ = get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, ts.URL+"/version")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, Version)

	code, body = get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "app.js")

	code, _ = get(t, ts.URL+"/api/v1/workflows/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_RESTAndWebSocketShareStore(t *testing.T) {
	_, ts := startServer(t, testConfig())

	wf := types.NewWorkflow("Research")
	data, err := json.Marshal(wf)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/v1/workflows", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ctx := context.Background()
	client, err := transport.Connect(ctx, wsURL(ts), nil, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	var list struct {
		Workflows []types.WorkflowSummary `json:"workflows"`
	}
	require.NoError(t, client.CallInto(ctx, "listWorkflows", nil, &list))
	require.Len(t, list.Workflows, 1)
	assert.Equal(t, "Research", list.Workflows[0].Name)

	// 会话命令与后端命令在同一连接上
	var opened map[string]any
	require.NoError(t, client.CallInto(ctx, "editor.open", map[string]string{"workflow_id": list.Workflows[0].ID}, &opened))
	assert.Equal(t, "Research", opened["name"])
}

func TestInspectWorkflows(t *testing.T) {
	color.NoColor = true
	_, ts := startServer(t, testConfig())

	ctx := context.Background()
	client, err := transport.Connect(ctx, wsURL(ts), nil, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	var buf bytes.Buffer
	require.NoError(t, inspectWorkflows(ctx, &buf, client))
	assert.Contains(t, buf.String(), "Workflows (0)")

	wf := types.NewWorkflow("Pipeline")
	wf.Agents["a1"] = types.NewAgent("a1", "Planner")
	var saved map[string]string
	require.NoError(t, client.CallInto(ctx, "saveWorkflow", wf, &saved))

	buf.Reset()
	require.NoError(t, inspectWorkflows(ctx, &buf, client))
	out := buf.String()
	assert.Contains(t, out, "Workflows (1)")
	assert.Contains(t, out, saved["workflow_id"])
	assert.Contains(t, out, "Pipeline")
}

func TestPrintConfig_RedactsSecrets(t *testing.T) {
	color.NoColor = true
	cfg := testConfig()
	cfg.Auth.JWTSecret = "super-secret"

	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, cfg.Sanitized()))
	assert.Contains(t, buf.String(), "Configuration")
	assert.NotContains(t, buf.String(), "super-secret")
}

func TestServer_AuthProtectsWebSocket(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"key-1"}
	_, ts := startServer(t, cfg)

	ctx := context.Background()
	_, err := transport.Connect(ctx, wsURL(ts), nil, zap.NewNop())
	assert.Error(t, err)

	client, err := transport.Connect(ctx, wsURL(ts)+"?api_key=key-1", nil, zap.NewNop())
	require.NoError(t, err)
	client.Close()

	code, _ := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_MetricsExposeRequests(t *testing.T) {
	s, ts := startServer(t, testConfig())
	get(t, ts.URL+"/healthz")

	w := httptest.NewRecorder()
	s.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "flowedit_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
