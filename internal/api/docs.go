package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/halcyard/brandforge/internal/docstore"
	"go.uber.org/zap"
)

func (h *Handler) requireDocs(w http.ResponseWriter) bool {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "document store not configured")
		return false
	}
	return true
}

func readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil || len(body) == 0 || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "body must be a JSON document")
		return nil, false
	}
	return body, true
}

func (h *Handler) createDoc(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireDocs(w) {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		id, err := h.docs.Create(r.Context(), collection, body)
		if err != nil {
			h.logger.Error("create doc failed", zap.String("collection", collection), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create failed")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func (h *Handler) listDocs(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireDocs(w) {
			return
		}
		docs, err := h.docs.List(r.Context(), collection)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		if docs == nil {
			docs = []*docstore.Document{}
		}
		writeJSON(w, http.StatusOK, docs)
	}
}

func (h *Handler) getDoc(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireDocs(w) {
			return
		}
		d, err := h.docs.Get(r.Context(), collection, chi.URLParam(r, "id"))
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "get failed")
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) updateDoc(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireDocs(w) {
			return
		}
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		d, err := h.docs.Update(r.Context(), collection, chi.URLParam(r, "id"), body)
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func (h *Handler) deleteDoc(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.requireDocs(w) {
			return
		}
		err := h.docs.Delete(r.Context(), collection, chi.URLParam(r, "id"))
		if errors.Is(err, docstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "delete failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// subscribeDoc pushes the full current document over a websocket on every
// change.
func (h *Handler) subscribeDoc(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.docs == nil {
			writeError(w, http.StatusServiceUnavailable, "document store not configured")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		ch, err := h.docs.Subscribe(r.Context(), collection, chi.URLParam(r, "id"))
		if err != nil {
			conn.WriteJSON(map[string]string{"error": err.Error()})
			return
		}
		for d := range ch {
			if err := conn.WriteJSON(d); err != nil {
				return
			}
		}
	}
}
