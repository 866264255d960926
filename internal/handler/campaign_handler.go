// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

// CampaignHandler serves the rendered newsletter: browser preview and copy/paste export.
type CampaignHandler struct {
	Service    *service.CampaignService
	WriteError auth.ErrorWriter
}

func NewCampaignHandler(svc *service.CampaignService, writeErr auth.ErrorWriter) *CampaignHandler {
	return &CampaignHandler{Service: svc, WriteError: writeErr}
}

func (h *CampaignHandler) request(w http.ResponseWriter, r *http.Request) (auth.Actor, int, bool) {
	actor, ok := auth.FromContext(r.Context())
	if !ok {
		h.WriteError(w, r, appErrors.ErrUnauthenticated)
		return auth.Actor{}, 0, false
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		h.WriteError(w, r, appErrors.NewValidationError(nil, appErrors.FieldError{Field: "id", Error: "invalid campaign id"}))
		return auth.Actor{}, 0, false
	}
	return actor, id, true
}

// audienceParam reads ?audience=pta|school. The PTA version is the default.
func audienceParam(r *http.Request) model.Audience {
	switch strings.ToLower(r.URL.Query().Get("audience")) {
	case "school", "families", "all":
		return model.AudienceAll
	}
	return model.AudiencePTAOnly
}

// PreviewHandler renders the current sections without persisting. With ?format=json both
// versions are returned; otherwise the selected version is served as HTML.
func (h *CampaignHandler) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.request(w, r)
	if !ok {
		return
	}

	rendered, err := h.Service.Preview(r.Context(), actor, id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rendered)
		return
	}

	doc := rendered.PTAHTML
	if audienceParam(r) == model.AudienceAll {
		doc = rendered.SchoolHTML
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(doc))
}

// ExportHandler returns one version for pasting into a mail client. Accept: text/plain or
// text/html selects a single format; anything else gets both as JSON.
func (h *CampaignHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.request(w, r)
	if !ok {
		return
	}

	export, err := h.Service.ExportCampaign(r.Context(), actor, id, audienceParam(r))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "text/plain"):
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(export.Text))
	case strings.Contains(accept, "text/html"):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(export.HTML))
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(export)
	}
}
