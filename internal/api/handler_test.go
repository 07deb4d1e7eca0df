package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/halcyard/brandforge/internal/agents"
	"github.com/halcyard/brandforge/internal/backend"
	"github.com/halcyard/brandforge/internal/blobstore"
	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/orchestrator"
	"github.com/halcyard/brandforge/internal/planner"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

type stubBackend struct{}

func (stubBackend) Complete(ctx context.Context, parts []backend.Part, opts backend.Options) (*backend.Completion, error) {
	return nil, fmt.Errorf("planning: %w", backend.ErrUnavailable)
}

type stubAgent struct {
	role task.Role
	fn   func(t *task.Task, st *task.State) task.Outcome
}

func (s *stubAgent) Role() task.Role { return s.role }
func (s *stubAgent) Execute(_ context.Context, t *task.Task, st *task.State) task.Outcome {
	return s.fn(t, st)
}

// newTestHandler wires a Handler with in-process deps and no PostgreSQL.
func newTestHandler(t *testing.T) (*Handler, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()

	img := []byte{0x89, 0x50, 0x4E, 0x47}
	reg := agents.NewRegistry()
	reg.Register(&stubAgent{role: task.RoleCreativeDirector, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.DirectorOutput{Image: img, ExpandedPrompt: "expanded"})
	}})
	reg.Register(&stubAgent{role: task.RoleComplianceAuditor, fn: func(*task.Task, *task.State) task.Outcome {
		return task.Ok(&agents.AuditResult{ComplianceScore: 95, Pass: true})
	}})

	mem := memory.NewInMem()
	blobs := blobstore.NewInMem()
	t.Cleanup(blobs.Close)

	svc := orchestrator.NewService(
		planner.New(stubBackend{}, logger),
		orchestrator.NewExecutor(reg, logger),
		nil, mem, orchestrator.StrategyPlanned, logger,
	)
	h := NewHandler(svc, blobs, nil, mem, logger)
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return h, ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func TestHealthCheck(t *testing.T) {
	_, ts := newTestHandler(t)

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["service"] != "brandforge" {
		t.Errorf("got %v", body)
	}
}

func TestOrchestrateRequiresPrompt(t *testing.T) {
	_, ts := newTestHandler(t)

	resp := postJSON(t, ts, "/api/orchestrate", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got %d, want 400", resp.StatusCode)
	}
}

func TestOrchestrateStreamsNDJSONAndParksImage(t *testing.T) {
	_, ts := newTestHandler(t)

	// Constitution supplied so the fallback plan skips the analyst.
	resp := postJSON(t, ts, "/api/orchestrate", map[string]any{
		"prompt":       "generate a launch banner",
		"constitution": map[string]any{"brand_essence": "test"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("got content type %q", ct)
	}

	var events []wireEvent
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		var ev wireEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("bad NDJSON line: %v", err)
		}
		events = append(events, ev)
	}
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}

	last := events[len(events)-1]
	if last.Phase != orchestrator.PhaseComplete || last.Result == nil {
		t.Fatalf("got terminal %+v", last)
	}
	if last.Result.ImageBlobID == "" {
		t.Fatal("image should be parked as a blob id")
	}

	// The blob id resolves exactly once.
	blobResp, err := http.Get(ts.URL + "/api/blobs/" + last.Result.ImageBlobID)
	if err != nil {
		t.Fatalf("GET blob: %v", err)
	}
	data, _ := io.ReadAll(blobResp.Body)
	blobResp.Body.Close()
	if blobResp.StatusCode != http.StatusOK || len(data) == 0 {
		t.Fatalf("got %d with %d bytes", blobResp.StatusCode, len(data))
	}

	again, _ := http.Get(ts.URL + "/api/blobs/" + last.Result.ImageBlobID)
	again.Body.Close()
	if again.StatusCode != http.StatusNotFound {
		t.Errorf("second blob read should 404, got %d", again.StatusCode)
	}
}

func TestBlobNotFound(t *testing.T) {
	_, ts := newTestHandler(t)

	resp, err := http.Get(ts.URL + "/api/blobs/nope")
	if err != nil {
		t.Fatalf("GET blob: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got %d, want 404", resp.StatusCode)
	}
}

func TestExportTemplates(t *testing.T) {
	_, ts := newTestHandler(t)

	resp, _ := http.Get(ts.URL + "/api/export/templates")
	var templates []agents.ExportTemplate
	json.NewDecoder(resp.Body).Decode(&templates)
	resp.Body.Close()
	if len(templates) == 0 {
		t.Fatal("no templates")
	}

	resp, _ = http.Get(ts.URL + "/api/export/templates/youtube/thumbnail")
	var tpl agents.ExportTemplate
	json.NewDecoder(resp.Body).Decode(&tpl)
	resp.Body.Close()
	if tpl.Width != 1280 || tpl.Height != 720 {
		t.Errorf("got %dx%d", tpl.Width, tpl.Height)
	}

	resp, _ = http.Get(ts.URL + "/api/export/templates/myspace/post")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got %d, want 404", resp.StatusCode)
	}
}

func TestDocRoutesWithoutPostgres(t *testing.T) {
	_, ts := newTestHandler(t)

	resp, _ := http.Get(ts.URL + "/api/brands/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/campaigns/", map[string]any{"name": "spring"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got %d, want 503", resp.StatusCode)
	}
}

func TestClearSessionMemory(t *testing.T) {
	h, ts := newTestHandler(t)

	ctx := context.Background()
	h.mem.AppendTurn(ctx, "sess-1", memory.Turn{Role: "user", Content: "hi"})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/sess-1/memory", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d", resp.StatusCode)
	}

	turns, _ := h.mem.Turns(ctx, "sess-1", 0)
	if len(turns) != 0 {
		t.Errorf("memory not cleared: %d turns", len(turns))
	}
}
