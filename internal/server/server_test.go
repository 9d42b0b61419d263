package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"google.golang.org/genai"

	"dailybrief/internal/brief"
	"dailybrief/internal/config"
	"dailybrief/internal/connector"
	"dailybrief/internal/core"
	"dailybrief/internal/llm"
	"dailybrief/internal/pipeline"
	"dailybrief/internal/runs"
	"dailybrief/internal/store"
	"dailybrief/internal/topicbrief"
)

// stubInvoker fails every model call; the routes under test never reach one.
type stubInvoker struct{}

func (stubInvoker) Invoke(ctx context.Context, prompt llm.Prompt, schema *genai.Schema, timeout time.Duration) (string, error) {
	return "", errors.New("no model in tests")
}

func (stubInvoker) Provider() string  { return "google" }
func (stubInvoker) ModelName() string { return "test-model" }

func newTestServer(t *testing.T) (*Server, *store.Store, *runs.Supervisor) {
	t.Helper()
	s, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	sup := runs.NewSupervisor(s)
	ing := connector.NewIngester(s, time.Second, 10)
	proc := pipeline.NewProcessor(s, stubInvoker{}, pipeline.Options{
		ClassificationTimeout: time.Minute,
		ExtractionTimeout:     time.Minute,
		VideoTimeout:          time.Minute,
	}, 0)
	gen := topicbrief.NewGenerator(s, stubInvoker{}, 10, time.Minute)
	b := brief.NewBuilder(s, gen, 15, 3, 48)

	srv := New(s, sup, ing, proc, b, cfg)
	return srv, s, sup
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q", resp["status"])
	}
}

func TestTopicCRUD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/topics", core.Topic{
		Name: "AI Policy", Description: "Regulation news", Priority: 5, Enabled: true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created core.Topic
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created topic should have an id")
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/topics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listResp struct {
		Topics []core.Topic `json:"topics"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if len(listResp.Topics) != 1 || listResp.Topics[0].Name != "AI Policy" {
		t.Errorf("topics = %+v", listResp.Topics)
	}

	created.Priority = 9
	rec = doJSON(t, srv, http.MethodPut, "/api/topics/"+itoa(created.ID), created)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/topics/"+itoa(created.ID), nil)
	var got core.Topic
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid get response: %v", err)
	}
	if got.Priority != 9 {
		t.Errorf("priority = %d, want 9 after update", got.Priority)
	}
}

func TestCreateTopic_RequiresName(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/topics", core.Topic{Description: "nameless"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSourceCRUD(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/sources", core.Source{
		Name: "Blog", Target: "https://blog.example/feed", Enabled: true, Weight: 4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created core.Source
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if created.Kind != core.SourceRSS {
		t.Errorf("kind should default to rss, got %s", created.Kind)
	}

	created.Enabled = false
	rec = doJSON(t, srv, http.MethodPut, "/api/sources/"+itoa(created.ID), created)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/sources/"+itoa(created.ID), nil)
	var got core.Source
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid get response: %v", err)
	}
	if got.Enabled {
		t.Error("source should be disabled after update")
	}
}

func TestCreateSource_RequiresTarget(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/sources", core.Source{Name: "No target"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStartIngestRun(t *testing.T) {
	srv, s, sup := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/runs/ingest", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		RunID int64  `json:"run_id"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.Kind != "ingest" || resp.RunID == 0 {
		t.Errorf("response = %+v", resp)
	}

	sup.Wait()
	run, err := s.GetRun(resp.RunID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	// No sources configured: the run completes cleanly.
	if run.Status != core.RunSuccess {
		t.Errorf("run status = %s, want success", run.Status)
	}
}

func TestStartAIRun_TimeoutOverride(t *testing.T) {
	srv, s, sup := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/runs/ai", map[string]any{"timeout_seconds": 5})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		RunID int64 `json:"run_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}

	sup.Wait()
	run, err := s.GetRun(resp.RunID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if run.Stats["timeout_seconds"] != float64(5) {
		t.Errorf("timeout_seconds = %v, want the override", run.Stats["timeout_seconds"])
	}
	// No unprocessed items: the run completes without a model call.
	if run.Status != core.RunSuccess {
		t.Errorf("run status = %s, want success", run.Status)
	}
}

func TestBuildBrief_Synchronous(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/runs/build-brief", map[string]any{"date": "2026-08-29"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var run core.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if run.Status != core.RunSuccess {
		t.Errorf("response should carry the terminal run, got status %s", run.Status)
	}
	if run.Kind != core.RunBuildBrief {
		t.Errorf("kind = %s", run.Kind)
	}
}

func TestBuildBrief_RejectsBadDate(t *testing.T) {
	srv, s, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/runs/build-brief", map[string]any{"date": "29-08-2026"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}

	// Validation happens before any run is created.
	runList, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runList) != 0 {
		t.Errorf("no run should exist after a rejected request, got %d", len(runList))
	}
}

func TestCancelUnknownRun(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/runs/99999/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp["cancelled"] != false {
		t.Errorf("cancelled = %v, want false", resp["cancelled"])
	}
}

func TestListRuns(t *testing.T) {
	srv, s, _ := newTestServer(t)
	if _, err := s.CreateRun(core.RunAI, nil); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Runs []core.Run `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Runs) != 1 {
		t.Errorf("got %d runs, want 1", len(resp.Runs))
	}
}

func TestGetBrief_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/briefs/2026-08-29", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetRun_InvalidID(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/api/runs/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
