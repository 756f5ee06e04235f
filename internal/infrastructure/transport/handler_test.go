package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scaffoldgen/app/usecase"
	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/store/sqlite"
)

type okBuilder struct{}

func (okBuilder) Build(_ context.Context, run *entity.Run) (string, error) {
	return run.ID + ".log", nil
}

type fixture struct {
	srv   *httptest.Server
	store *sqlite.Store
	hub   *ProgressHub
	runs  *usecase.RunService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	runs := usecase.NewRunService(store, store, okBuilder{}, logger)
	hub := NewProgressHub(logger)
	h := NewRunHandler(runs, usecase.NewArtifactService(store), hub, logger)

	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		runs.Wait()
		_ = store.Close()
	})
	return &fixture{srv: srv, store: store, hub: hub, runs: runs}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (f *fixture) createRun(t *testing.T) *entity.Run {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/v1/runs",
		`{"projectName":"Acme","description":"rocket landing","projectType":"landing","features":["darkMode"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var run entity.Run
	require.NoError(t, json.Unmarshal(body, &run))
	return &run
}

func TestHandler_RunCRUD(t *testing.T) {
	f := newFixture(t)

	run := f.createRun(t)
	assert.Equal(t, entity.RunStatusPending, run.Status)
	assert.Equal(t, []string{"darkMode"}, run.Features)

	resp, body := f.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), run.ID)

	resp, body = f.do(t, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []entity.Run
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 1)

	resp, _ = f.do(t, http.MethodDelete, "/api/v1/runs/"+run.ID, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs/"+run.ID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_CreateValidation(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/runs", "{not json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/v1/runs", `{"projectName":"A","description":"B","projectType":"spaceship"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unknown project type")
}

func TestHandler_FilesAndBuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	run := f.createRun(t)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/runs/"+run.ID+"/build", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "pending runs cannot be built")

	require.NoError(t, f.store.SaveFiles(ctx, run.ID, entity.NewArtifacts(run.ID, map[string]string{
		"package.json": `{"name":"acme"}`,
	})))
	require.NoError(t, f.store.UpdateStatus(ctx, run.ID, entity.RunStatusCompleted))

	resp, body := f.do(t, http.MethodGet, "/api/v1/runs/"+run.ID+"/files", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var files []entity.Artifact
	require.NoError(t, json.Unmarshal(body, &files))
	require.Len(t, files, 1)
	assert.Equal(t, "package.json", files[0].Path)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/runs/"+run.ID+"/build", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	f.runs.Wait()

	got, err := f.store.GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusBuilt, got.Status)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/runs/missing/files", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"ok":true`)

	resp, body = f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, bytes.Contains(body, []byte("scaffoldgen_http_requests_total")))
}

func TestHandler_ProgressStream(t *testing.T) {
	f := newFixture(t)
	run := f.createRun(t)

	f.hub.Publish(context.Background(), entity.Progress{RunID: run.ID, Percent: 10, State: entity.StatePlanning})

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/runs/" + run.ID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first entity.Progress
	require.NoError(t, conn.ReadJSON(&first), "latest event is replayed")
	assert.Equal(t, entity.StatePlanning, first.State)

	require.Eventually(t, func() bool { return f.hub.Subscribers(run.ID) == 1 }, time.Second, 5*time.Millisecond)
	f.hub.Publish(context.Background(), entity.Progress{RunID: run.ID, Percent: 100, State: entity.StateDone})

	var done entity.Progress
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, 100, done.Percent)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.Eventually(t, func() bool { return f.hub.Subscribers(run.ID) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandler_ProgressUnknownRun(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/api/v1/runs/missing/progress", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_ProgressReplaysFinishedRun(t *testing.T) {
	f := newFixture(t)
	run := f.createRun(t)

	f.hub.Publish(context.Background(), entity.Progress{RunID: run.ID, Percent: 100, State: entity.StateDone})

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/v1/runs/" + run.ID + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var done entity.Progress
	require.NoError(t, conn.ReadJSON(&done))
	assert.Equal(t, entity.StateDone, done.State)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestProgressHub_TerminalEventExpires(t *testing.T) {
	hub := NewProgressHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Publish(context.Background(), entity.Progress{RunID: "r1", Percent: 40, State: entity.StatePlanning})
	hub.Publish(context.Background(), entity.Progress{RunID: "r1", Percent: 40, State: entity.StateFailed})

	s := hub.subscribe("r1")
	require.Len(t, s.send, 1)
	assert.Equal(t, entity.StateFailed, (<-s.send).State)
	hub.unsubscribe("r1", s)

	hub.mu.Lock()
	hub.expires["r1"] = time.Now().Add(-time.Second)
	hub.mu.Unlock()

	s = hub.subscribe("r1")
	assert.Empty(t, s.send)
	hub.unsubscribe("r1", s)
}
