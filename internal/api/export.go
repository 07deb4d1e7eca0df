package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/halcyard/brandforge/internal/agents"
)

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agents.Templates())
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	platform := chi.URLParam(r, "platform")
	contentType := chi.URLParam(r, "type")
	tpl, ok := agents.LookupTemplate(platform, contentType)
	if !ok {
		writeError(w, http.StatusNotFound, "no template for "+platform+"/"+contentType)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}
