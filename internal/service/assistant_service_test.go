package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

type fakeAdvisor struct {
	err      error
	event    model.CalendarEvent
	position string
	minutes  []model.MinutesRecord
}

func (a *fakeAdvisor) RecommendForEvent(_ context.Context, _ model.School, e model.CalendarEvent) (*ai.EventRecommendations, error) {
	a.event = e
	if a.err != nil {
		return nil, a.err
	}
	return &ai.EventRecommendations{Tips: []string{"Start early"}}, nil
}

func (a *fakeAdvisor) GuideForPosition(_ context.Context, _ model.School, position string, minutes []model.MinutesRecord) (*ai.OnboardingGuide, error) {
	a.position = position
	a.minutes = minutes
	if a.err != nil {
		return nil, a.err
	}
	return &ai.OnboardingGuide{Overview: "Keeps the books", KeyResponsibilities: []string{"Budget"}}, nil
}

func newAssistant(f *fixture, advisor *fakeAdvisor) *service.AssistantService {
	s := service.NewAssistantService(f.store, advisor, f.metrics)
	s.Now = func() time.Time { return testNow }
	return s
}

func TestEventRecommendations(t *testing.T) {
	f := newFixture(t)
	advisor := &fakeAdvisor{}
	s := newAssistant(f, advisor)
	ours := f.store.AddEvent(model.CalendarEvent{SchoolID: f.school.ID, Title: "Book Fair", StartTime: weekStart})
	theirs := f.store.AddEvent(model.CalendarEvent{SchoolID: f.other.ID, Title: "Gala", StartTime: weekStart})

	out, err := s.EventRecommendations(context.Background(), f.actor, ours.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Start early"}, out.Tips)
	assert.Equal(t, "Book Fair", advisor.event.Title)

	_, err = s.EventRecommendations(context.Background(), f.actor, theirs.ID)
	assert.True(t, appErrors.IsNotFound(err))

	_, err = s.EventRecommendations(context.Background(), auth.Actor{UserID: 1}, ours.ID)
	assert.ErrorIs(t, err, appErrors.ErrNoSchoolSelected)
}

func TestEventRecommendations_AdvisorError(t *testing.T) {
	f := newFixture(t)
	s := newAssistant(f, &fakeAdvisor{err: &ai.ParseError{Err: errors.New("not json")}})
	e := f.store.AddEvent(model.CalendarEvent{SchoolID: f.school.ID, Title: "Book Fair", StartTime: weekStart})

	_, err := s.EventRecommendations(context.Background(), f.actor, e.ID)
	var perr *ai.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestOnboardingGuide(t *testing.T) {
	f := newFixture(t)
	advisor := &fakeAdvisor{}
	s := newAssistant(f, advisor)
	f.store.AddMinutes(model.MinutesRecord{SchoolID: f.school.ID, Title: "Recent", MeetingDate: testNow.AddDate(0, 0, -10), Status: model.MinutesStatusApproved})
	f.store.AddMinutes(model.MinutesRecord{SchoolID: f.school.ID, Title: "Old", MeetingDate: testNow.AddDate(0, 0, -90), Status: model.MinutesStatusApproved})
	f.store.AddMinutes(model.MinutesRecord{SchoolID: f.other.ID, Title: "Other", MeetingDate: testNow.AddDate(0, 0, -5), Status: model.MinutesStatusApproved})

	out, err := s.OnboardingGuide(context.Background(), f.actor, "  Treasurer ")
	require.NoError(t, err)
	assert.Equal(t, "Keeps the books", out.Overview)
	assert.Equal(t, "Treasurer", advisor.position)
	require.Len(t, advisor.minutes, 1)
	assert.Equal(t, "Recent", advisor.minutes[0].Title)
}

func TestOnboardingGuide_Validation(t *testing.T) {
	f := newFixture(t)
	s := newAssistant(f, &fakeAdvisor{})

	for _, position := range []string{"", "   ", strings.Repeat("x", 101)} {
		_, err := s.OnboardingGuide(context.Background(), f.actor, position)
		var verr *appErrors.ValidationError
		require.ErrorAs(t, err, &verr, "position %q", position)
		assert.Equal(t, "position", verr.Fields[0].Field)
	}
}
