package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/halcyard/brandforge/internal/orchestrator"
	"github.com/halcyard/brandforge/internal/task"
	"go.uber.org/zap"
)

// wireEvent mirrors orchestrator.Event but carries a blob id in place of
// inline image bytes, so the stream stays small.
type wireEvent struct {
	Phase       orchestrator.Phase `json:"phase"`
	Progress    int                `json:"progress"`
	Message     string             `json:"message"`
	Thinking    string             `json:"thinking,omitempty"`
	CurrentTask *task.Task         `json:"current_task,omitempty"`
	AgentRole   task.Role          `json:"agent_role,omitempty"`
	Result      *wireResult        `json:"result,omitempty"`
}

type wireResult struct {
	Success      bool          `json:"success"`
	ImageBlobID  string        `json:"image_blob_id,omitempty"`
	Message      string        `json:"message"`
	Constitution any           `json:"constitution,omitempty"`
	TaskResults  []task.Result `json:"task_results"`
	DurationMs   int64         `json:"duration_ms"`
}

// toWire converts an event, parking any image in the blob store.
func (h *Handler) toWire(ctx context.Context, ev orchestrator.Event) wireEvent {
	out := wireEvent{
		Phase:       ev.Phase,
		Progress:    ev.Progress,
		Message:     ev.Message,
		Thinking:    ev.Thinking,
		CurrentTask: ev.CurrentTask,
		AgentRole:   ev.AgentRole,
	}
	if ev.Result == nil {
		return out
	}
	wr := &wireResult{
		Success:      ev.Result.Success,
		Message:      ev.Result.Message,
		Constitution: ev.Result.Constitution,
		TaskResults:  ev.Result.TaskResults,
		DurationMs:   ev.Result.DurationMs,
	}
	if len(ev.Result.Image) > 0 {
		id, err := h.blobs.Put(ctx, ev.Result.Image)
		if err != nil {
			h.logger.Error("blob store failed, dropping image from stream", zap.Error(err))
		} else {
			wr.ImageBlobID = id
		}
	}
	out.Result = wr
	return out
}

// orchestrate runs one orchestration and streams progress as NDJSON lines.
func (h *Handler) orchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for ev := range h.svc.Run(r.Context(), req) {
		if err := enc.Encode(h.toWire(r.Context(), ev)); err != nil {
			return
		}
		flusher.Flush()
	}
}

// orchestrateWS is the websocket variant: the client sends one request
// frame, the server streams event frames until the run ends.
func (h *Handler) orchestrateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var req orchestrator.Request
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(map[string]string{"error": "invalid request frame"})
		return
	}
	if req.Prompt == "" {
		conn.WriteJSON(map[string]string{"error": "prompt is required"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client close aborts the run; in-flight backend calls finish on
	// their own and are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range h.svc.Run(ctx, req) {
		if err := conn.WriteJSON(h.toWire(ctx, ev)); err != nil {
			return
		}
	}
}
