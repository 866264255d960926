package controller

import (
	"net/http"

	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

type SectionController struct {
	SectionService *service.SectionService
	Respond        *Responder
}

func (c *SectionController) ListSections(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	campaignID, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	sections, err := c.SectionService.ListSections(r.Context(), actor, campaignID)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, map[string]interface{}{"data": sections})
}

// AddSection also promotes an AI suggestion: the client posts the suggestion's title and
// blurb as a new section.
func (c *SectionController) AddSection(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	campaignID, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body service.NewSection
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	section, err := c.SectionService.AddSection(r.Context(), actor, campaignID, body)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusCreated, section)
}

func (c *SectionController) UpdateSection(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	sectionID, err := IDParam(r, "sectionID")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var patch model.SectionPatch
	if err := decode(r, &patch); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	section, err := c.SectionService.UpdateSection(r.Context(), actor, sectionID, patch)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, section)
}

func (c *SectionController) DeleteSection(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	sectionID, err := IDParam(r, "sectionID")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	if err := c.SectionService.DeleteSection(r.Context(), actor, sectionID); err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *SectionController) ReorderSections(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	campaignID, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body struct {
		SectionIDs []int `json:"section_ids"`
	}
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	sections, err := c.SectionService.ReorderSections(r.Context(), actor, campaignID, body.SectionIDs)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, map[string]interface{}{"data": sections})
}
