package controller

import (
	"net/http"

	"github.com/unclebandit/pta-newsletter/internal/service"
)

type ContentController struct {
	ContentService *service.ContentService
	Respond        *Responder
}

func (c *ContentController) ListInbox(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	items, err := c.ContentService.ListInbox(r.Context(), actor)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, map[string]interface{}{"data": items})
}

func (c *ContentController) Submit(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body service.NewContentItem
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	item, err := c.ContentService.SubmitContent(r.Context(), actor, body)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusCreated, item)
}

func (c *ContentController) Include(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	itemID, err := IDParam(r, "itemID")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body struct {
		CampaignID int `json:"campaign_id"`
	}
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	section, err := c.ContentService.IncludeContentInCampaign(r.Context(), actor, itemID, body.CampaignID)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusCreated, section)
}

func (c *ContentController) Skip(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	itemID, err := IDParam(r, "itemID")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	if err := c.ContentService.SkipContentItem(r.Context(), actor, itemID); err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
