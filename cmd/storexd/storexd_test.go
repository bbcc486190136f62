package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/comalice/storex/internal/config"
	"github.com/comalice/storex/internal/demo"
	"github.com/comalice/storex/internal/production"
)

func newTestServer(t *testing.T) (*app, *httptest.Server) {
	t.Helper()
	a, err := newApp(context.Background(), config.Default(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	srv := httptest.NewServer(a.routes())
	t.Cleanup(func() {
		a.close()
		srv.Close()
	})
	return a, srv
}

func postAction(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/dispatch", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServer_StateAndDispatch(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state demo.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, demo.Initial(), state)

	dispatched := postAction(t, srv, `{"type":"ADD","payload":4}`)
	require.Equal(t, http.StatusOK, dispatched.StatusCode)

	var body dispatchResponse
	require.NoError(t, json.NewDecoder(dispatched.Body).Decode(&body))
	assert.Equal(t, 4, body.State.Count)

	timer := postAction(t, srv, `{"type":"TIMER"}`)
	require.Equal(t, http.StatusOK, timer.StatusCode)
	require.NoError(t, json.NewDecoder(timer.Body).Decode(&body))
	assert.Equal(t, demo.Green, body.State.Light)
}

func TestServer_DispatchErrors(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"type":`, http.StatusBadRequest},
		{"missing type", `{"payload":1}`, http.StatusBadRequest},
		{"reducer error", `{"type":"ADD","payload":"one"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postAction(t, srv, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestServer_HistoryAndMetrics(t *testing.T) {
	_, srv := newTestServer(t)
	require.Equal(t, http.StatusOK, postAction(t, srv, `{"type":"INC"}`).StatusCode)

	resp, err := http.Get(srv.URL + "/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	var history []production.Entry[demo.State]
	require.NoError(t, yaml.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history, 1)
	assert.Equal(t, "INC", history[0].Type)
	assert.Equal(t, 1, history[0].State.Count)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	data, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), `storex_dispatch_total{status="ok",store="demo",type="INC"} 1`)
	assert.Contains(t, string(data), "storex_listeners")
}

func TestServer_Health(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_WebSocketStream(t *testing.T) {
	_, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() production.StateFrame[demo.State] {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame production.StateFrame[demo.State]
		require.NoError(t, conn.ReadJSON(&frame))
		return frame
	}

	assert.Equal(t, demo.Red, read().State.Light)

	require.Equal(t, http.StatusOK, postAction(t, srv, `{"type":"TIMER"}`).StatusCode)
	assert.Equal(t, demo.Green, read().State.Light)
}

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "actions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	script := writeScript(t, `
- type: INC
- type: TIMER
- type: ADD
  payload: 3
`)
	export := filepath.Join(t.TempDir(), "history.yaml")

	out, err := executeRoot(t, "run", "--script", script, "--export", export)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"count":1`)
	assert.Contains(t, lines[1], `"light":"green"`)
	assert.Contains(t, lines[2], `"count":4`)

	data, err := os.ReadFile(export)
	require.NoError(t, err)
	var history []production.Entry[demo.State]
	require.NoError(t, yaml.Unmarshal(data, &history))
	require.Len(t, history, 3)
	assert.Equal(t, 4, history[2].State.Count)
}

func TestRunCommand_Failures(t *testing.T) {
	script := writeScript(t, `
- type: ADD
  payload: nope
- type: INC
`)

	out, err := executeRoot(t, "run", "--script", script)
	require.ErrorContains(t, err, "1 of 2 actions failed")
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, `"count":1`)

	out, err = executeRoot(t, "run", "--script", script, "--fail-fast")
	require.Error(t, err)
	assert.NotContains(t, out, `"count":1`)
}

func TestRunCommand_RequiresScript(t *testing.T) {
	_, err := executeRoot(t, "run")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "storexd dev")
}
