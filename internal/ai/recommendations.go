package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const eventSystemPrompt = `You help volunteer PTA board members plan school events.
Be practical and specific to the event described. Do not invent facts about the school.
Return ONLY a JSON object, no prose and no code fence, with this shape:
{
  "suggestedTasks": [{"title": "string", "description": "string", "daysBefore": 0}],
  "tips": ["string"],
  "volunteerRoles": [{"role": "string", "count": 1, "description": "string"}],
  "timeline": [{"when": "e.g. 3 weeks before", "task": "string"}]
}`

type RecommendedTask struct {
	Title       string `json:"title" validate:"required,max=300"`
	Description string `json:"description"`
	DaysBefore  int    `json:"daysBefore" validate:"gte=0"`
}

type VolunteerRole struct {
	Role        string `json:"role" validate:"required"`
	Count       int    `json:"count" validate:"gte=0"`
	Description string `json:"description"`
}

type TimelineStep struct {
	When string `json:"when" validate:"required"`
	Task string `json:"task" validate:"required"`
}

type EventRecommendations struct {
	SuggestedTasks []RecommendedTask `json:"suggestedTasks" validate:"required,dive"`
	Tips           []string          `json:"tips" validate:"dive,required"`
	VolunteerRoles []VolunteerRole   `json:"volunteerRoles" validate:"dive"`
	Timeline       []TimelineStep    `json:"timeline" validate:"dive"`
}

func ParseEventRecommendations(v *validation.Validator, raw string) (*EventRecommendations, error) {
	var out EventRecommendations
	if err := decodeInto(v, raw, &out, func() {
		if out.Tips == nil {
			out.Tips = []string{}
		}
		if out.VolunteerRoles == nil {
			out.VolunteerRoles = []VolunteerRole{}
		}
		if out.Timeline == nil {
			out.Timeline = []TimelineStep{}
		}
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

func buildEventPrompt(school model.School, e model.CalendarEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "School: %s\n", school.Name)
	fmt.Fprintf(&b, "Event: %s\n", e.Title)
	fmt.Fprintf(&b, "When: %s\n", formatEventTime(e))
	if e.Location != "" {
		fmt.Fprintf(&b, "Where: %s\n", e.Location)
	}
	if e.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", truncate(e.Description, 1000))
	}
	b.WriteString("\nSuggest planning tasks, tips, volunteer roles and a timeline for this event.")
	return b.String()
}

// RecommendForEvent returns planning help for one calendar event.
func (g *Generator) RecommendForEvent(ctx context.Context, school model.School, e model.CalendarEvent) (*EventRecommendations, error) {
	text, err := g.complete(ctx, "event recommendations", eventSystemPrompt, buildEventPrompt(school, e))
	if err != nil {
		return nil, err
	}
	return ParseEventRecommendations(g.validate, text)
}
