package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const onboardingSystemPrompt = `You onboard new elementary school PTA board members.
Write for a parent volunteer with no prior board experience. Be concrete.
Return ONLY a JSON object, no prose and no code fence, with this shape:
{
  "overview": "string",
  "keyResponsibilities": ["string"],
  "firstSteps": ["string"],
  "tips": ["string"],
  "resources": [{"title": "string", "description": "string"}]
}`

type GuideResource struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

type OnboardingGuide struct {
	Overview            string          `json:"overview" validate:"required"`
	KeyResponsibilities []string        `json:"keyResponsibilities" validate:"required,dive,required"`
	FirstSteps          []string        `json:"firstSteps" validate:"dive,required"`
	Tips                []string        `json:"tips" validate:"dive,required"`
	Resources           []GuideResource `json:"resources" validate:"dive"`
}

func ParseOnboardingGuide(v *validation.Validator, raw string) (*OnboardingGuide, error) {
	var out OnboardingGuide
	if err := decodeInto(v, raw, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func buildOnboardingPrompt(school model.School, position string, minutes []model.MinutesRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "School: %s\n", school.Name)
	fmt.Fprintf(&b, "Board position: %s\n", position)
	if len(minutes) > 0 {
		b.WriteString("\nRecent board business:\n")
		for _, m := range minutes {
			fmt.Fprintf(&b, "- %s: %s\n", m.MeetingDate.Format("Jan 2, 2006"), truncate(m.AISummary, minutesSummaryLimit))
		}
	}
	b.WriteString("\nWrite an onboarding guide for this position.")
	return b.String()
}

// GuideForPosition drafts a guide for someone taking over a board position.
func (g *Generator) GuideForPosition(ctx context.Context, school model.School, position string, minutes []model.MinutesRecord) (*OnboardingGuide, error) {
	text, err := g.complete(ctx, "onboarding guide", onboardingSystemPrompt, buildOnboardingPrompt(school, position, minutes))
	if err != nil {
		return nil, err
	}
	return ParseOnboardingGuide(g.validate, text)
}
