package controller

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	"github.com/unclebandit/pta-newsletter/internal/handler"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

type Deps struct {
	Campaigns  *service.CampaignService
	Generation *service.GenerationService
	Sections   *service.SectionService
	Content    *service.ContentService
	Assistant  *service.AssistantService
	Metrics    *metrics.Metrics
	JWTSecret  string
	Log        *slog.Logger
}

// NewRouter wires every route. Reads and inbox submission are open to any member of the
// school; everything that edits or sends a newsletter needs a board or admin role.
func NewRouter(d Deps) http.Handler {
	respond := NewResponder(d.Log)
	campaigns := &CampaignController{CampaignService: d.Campaigns, GenerationService: d.Generation, Respond: respond}
	sections := &SectionController{SectionService: d.Sections, Respond: respond}
	content := &ContentController{ContentService: d.Content, Respond: respond}
	assistant := &AssistantController{AssistantService: d.Assistant, Respond: respond}
	views := handler.NewCampaignHandler(d.Campaigns, respond.Error)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.JWTSecret, respond.Error))

		// Campaign routes
		r.Get("/campaigns", campaigns.ListCampaigns)
		r.Get("/campaigns/{id}", campaigns.GetCampaign)
		r.Get("/campaigns/{id}/sections", sections.ListSections)
		r.Get("/campaigns/{id}/preview", views.PreviewHandler)
		r.Get("/campaigns/{id}/export", views.ExportHandler)

		// Inbox
		r.Get("/inbox", content.ListInbox)
		r.Post("/inbox", content.Submit)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(respond.Error, auth.RoleBoard, auth.RoleAdmin))

			r.Post("/campaigns", campaigns.CreateCampaign)
			r.Patch("/campaigns/{id}", campaigns.UpdateCampaign)
			r.Patch("/campaigns/{id}/status", campaigns.UpdateStatus)
			r.Post("/campaigns/{id}/generate", campaigns.Generate)
			r.Post("/campaigns/{id}/compile", campaigns.Compile)
			r.Post("/campaigns/{id}/send", campaigns.SendCampaign)

			r.Post("/campaigns/{id}/sections", sections.AddSection)
			r.Put("/campaigns/{id}/sections/order", sections.ReorderSections)
			r.Patch("/sections/{sectionID}", sections.UpdateSection)
			r.Delete("/sections/{sectionID}", sections.DeleteSection)

			r.Post("/inbox/{itemID}/include", content.Include)
			r.Post("/inbox/{itemID}/skip", content.Skip)

			r.Post("/events/{eventID}/recommendations", assistant.EventRecommendations)
			r.Post("/board/onboarding-guide", assistant.OnboardingGuide)
		})
	})

	return r
}
