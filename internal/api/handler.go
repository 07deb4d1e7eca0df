package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/halcyard/brandforge/internal/blobstore"
	"github.com/halcyard/brandforge/internal/docstore"
	"github.com/halcyard/brandforge/internal/memory"
	"github.com/halcyard/brandforge/internal/orchestrator"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc    *orchestrator.Service
	blobs  blobstore.Store
	docs   *docstore.Store
	mem    memory.Store
	logger *zap.Logger
}

// NewHandler creates a new API handler. docs may be nil when the service
// runs without PostgreSQL; the document routes then answer 503.
func NewHandler(svc *orchestrator.Service, blobs blobstore.Store, docs *docstore.Store, mem memory.Store, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, blobs: blobs, docs: docs, mem: mem, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/orchestrate", h.orchestrate)
		r.Get("/orchestrate/ws", h.orchestrateWS)

		r.Get("/blobs/{id}", h.getBlob)

		r.Route("/brands", func(r chi.Router) {
			r.Get("/", h.listDocs(docstore.CollectionBrands))
			r.Post("/", h.createDoc(docstore.CollectionBrands))
			r.Get("/{id}", h.getDoc(docstore.CollectionBrands))
			r.Patch("/{id}", h.updateDoc(docstore.CollectionBrands))
			r.Delete("/{id}", h.deleteDoc(docstore.CollectionBrands))
			r.Get("/{id}/subscribe", h.subscribeDoc(docstore.CollectionBrands))
		})
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.listDocs(docstore.CollectionCampaigns))
			r.Post("/", h.createDoc(docstore.CollectionCampaigns))
			r.Get("/{id}", h.getDoc(docstore.CollectionCampaigns))
			r.Patch("/{id}", h.updateDoc(docstore.CollectionCampaigns))
			r.Delete("/{id}", h.deleteDoc(docstore.CollectionCampaigns))
			r.Get("/{id}/subscribe", h.subscribeDoc(docstore.CollectionCampaigns))
		})

		r.Get("/export/templates", h.listTemplates)
		r.Get("/export/templates/{platform}/{type}", h.getTemplate)

		r.Delete("/sessions/{id}/memory", h.clearMemory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "brandforge"})
}

func (h *Handler) getBlob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.blobs.Get(r.Context(), id)
	if errors.Is(err, blobstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "blob not found or already retrieved")
		return
	}
	if err != nil {
		h.logger.Error("blob fetch failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "blob fetch failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) clearMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.mem.Clear(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
