// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

type CampaignController struct {
	CampaignService   *service.CampaignService
	GenerationService *service.GenerationService
	Respond           *Responder
}

func actorFrom(r *http.Request) (auth.Actor, error) {
	a, ok := auth.FromContext(r.Context())
	if !ok {
		return auth.Actor{}, appErrors.ErrUnauthenticated
	}
	return a, nil
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body service.NewCampaign
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), actor, body)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	// Parse query parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), actor, page, pageSize, status)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	c.Respond.JSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	details, err := c.CampaignService.GetCampaign(r.Context(), actor, id)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, details)
}

// UpdateCampaign edits a draft's title or week.
func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body service.CampaignPatch
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), actor, id, body)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body struct {
		Status model.CampaignStatus `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	campaign, err := c.CampaignService.UpdateStatus(r.Context(), actor, id, body.Status)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, campaign)
}

// Generate replaces the campaign's sections with an AI draft.
func (c *CampaignController) Generate(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	result, err := c.GenerationService.GenerateDraft(r.Context(), actor, id)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, result)
}

func (c *CampaignController) Compile(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	campaign, err := c.CampaignService.Compile(r.Context(), actor, id)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	id, err := IDParam(r, "id")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	campaign, err := c.CampaignService.Send(r.Context(), actor, id)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, map[string]interface{}{
		"campaign_id": campaign.ID,
		"status":      campaign.Status,
		"sent_at":     campaign.SentAt,
	})
}
