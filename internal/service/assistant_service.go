package service

import (
	"context"
	"strings"
	"time"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

// Advisor answers board planning questions. *ai.Generator implements it.
type Advisor interface {
	RecommendForEvent(ctx context.Context, school model.School, e model.CalendarEvent) (*ai.EventRecommendations, error)
	GuideForPosition(ctx context.Context, school model.School, position string, minutes []model.MinutesRecord) (*ai.OnboardingGuide, error)
}

// AssistantService exposes the AI helpers outside the newsletter draft.
type AssistantService struct {
	Store   repository.Store
	Advisor Advisor
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewAssistantService(store repository.Store, advisor Advisor, m *metrics.Metrics) *AssistantService {
	return &AssistantService{Store: store, Advisor: advisor, Metrics: m, Now: time.Now}
}

func (s *AssistantService) EventRecommendations(ctx context.Context, actor auth.Actor, eventID int) (*ai.EventRecommendations, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	r := s.Store.Repos()
	e, err := r.Sources.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.SchoolID != schoolID {
		return nil, appErrors.NewNotFound("event", eventID)
	}
	school, err := r.Sources.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	out, err := s.Advisor.RecommendForEvent(ctx, *school, *e)
	s.Metrics.RecordAIRequest("event_recommendations", err)
	return out, err
}

// OnboardingGuide drafts a guide for a board position, grounded in the school's recent
// approved minutes.
func (s *AssistantService) OnboardingGuide(ctx context.Context, actor auth.Actor, position string) (*ai.OnboardingGuide, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	position = strings.TrimSpace(position)
	if position == "" || len(position) > 100 {
		return nil, appErrors.NewValidationError(nil, appErrors.FieldError{
			Field: "position",
			Error: "position is required and at most 100 characters",
		})
	}

	r := s.Store.Repos()
	school, err := r.Sources.GetSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	since := startOfDay(s.Now().AddDate(0, 0, -MinutesLookbackDays))
	minutes, err := r.Sources.ListApprovedMinutes(ctx, schoolID, since, MinutesLimit)
	if err != nil {
		return nil, err
	}

	out, err := s.Advisor.GuideForPosition(ctx, *school, position, minutes)
	s.Metrics.RecordAIRequest("onboarding_guide", err)
	return out, err
}
