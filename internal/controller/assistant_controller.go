package controller

import (
	"net/http"

	"github.com/unclebandit/pta-newsletter/internal/service"
)

type AssistantController struct {
	AssistantService *service.AssistantService
	Respond          *Responder
}

func (c *AssistantController) EventRecommendations(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	eventID, err := IDParam(r, "eventID")
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	recs, err := c.AssistantService.EventRecommendations(r.Context(), actor, eventID)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, recs)
}

func (c *AssistantController) OnboardingGuide(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	var body struct {
		Position string `json:"position"`
	}
	if err := decode(r, &body); err != nil {
		c.Respond.Error(w, r, err)
		return
	}

	guide, err := c.AssistantService.OnboardingGuide(r.Context(), actor, body.Position)
	if err != nil {
		c.Respond.Error(w, r, err)
		return
	}
	c.Respond.JSON(w, http.StatusOK, guide)
}
