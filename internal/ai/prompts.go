package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/unclebandit/pta-newsletter/internal/model"
)

const (
	minutesSummaryLimit = 600
	contentDescLimit    = 800
)

const emailSystemPrompt = `You write the weekly email newsletter for an elementary school PTA.

Style:
- Warm, upbeat and brief. Parents skim on their phones.
- Lead with what families need to do this week, then what is coming up.
- Never invent dates, times, places or people. Use only the information provided.

Formatting rules for every "body":
- HTML fragment only. Allowed tags: <p>, <strong>, <a>, <br>, <img>.
- Links must be <a href="..." target="_blank" rel="noopener noreferrer">.
- No headings, lists, tables, inline styles, scripts or markdown.

Audience:
- "all" sections go to every family and to PTA members.
- "pta_only" sections go to PTA members only (board business, volunteer asks, budget notes).

Output: return ONLY a JSON object, no prose and no code fence, with this shape:
{
  "sections": [
    {
      "title": "string",
      "body": "HTML string",
      "linkUrl": "string or null",
      "linkText": "string or null",
      "audience": "all" | "pta_only",
      "sectionType": "calendar_summary" | "custom" | "recurring",
      "recurringKey": "key of the recurring section this fills, or null"
    }
  ],
  "suggestions": [
    {
      "title": "string",
      "reason": "why this belongs in an upcoming email",
      "source": "calendar" | "minutes" | "pattern",
      "priority": "high" | "medium" | "low",
      "suggestedBlurb": "optional short HTML body"
    }
  ]
}

Sections appear in the email in array order. Start with a "calendar_summary" section for this
week's events when there are any. Include one section per submitted content item. Fill every
recurring section listed. Put ideas you could not place this week in "suggestions".`

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func formatEventTime(e model.CalendarEvent) string {
	if e.AllDay {
		return e.StartTime.Format("Mon Jan 2") + " (all day)"
	}
	out := e.StartTime.Format("Mon Jan 2, 3:04 PM")
	if e.EndTime != nil {
		out += " - " + e.EndTime.Format("3:04 PM")
	}
	return out
}

func writeEvents(b *strings.Builder, events []model.CalendarEvent) {
	if len(events) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, e := range events {
		fmt.Fprintf(b, "- %s: %s", formatEventTime(e), e.Title)
		if e.Location != "" {
			fmt.Fprintf(b, " @ %s", e.Location)
		}
		b.WriteString("\n")
		if e.Description != "" {
			fmt.Fprintf(b, "  %s\n", truncate(e.Description, 300))
		}
	}
}

func weekRange(start, end time.Time) string {
	return start.Format("January 2") + " - " + end.Format("January 2, 2006")
}

// buildEmailPrompt renders the per-campaign user prompt.
func buildEmailPrompt(src *model.CampaignSources) string {
	var b strings.Builder

	fmt.Fprintf(&b, "School: %s\n", src.School.Name)
	fmt.Fprintf(&b, "Newsletter week: %s\n\n", weekRange(src.Campaign.WeekStart, src.Campaign.WeekEnd))

	b.WriteString("## Events this week\n")
	writeEvents(&b, src.Events)

	b.WriteString("\n## Coming up in the next two weeks\n")
	writeEvents(&b, src.Lookahead)

	b.WriteString("\n## Recent approved PTA meeting minutes\n")
	if len(src.Minutes) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range src.Minutes {
		fmt.Fprintf(&b, "### %s (%s)\n", m.Title, m.MeetingDate.Format("Jan 2, 2006"))
		if m.AISummary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", truncate(m.AISummary, minutesSummaryLimit))
		}
		if len(m.KeyItems) > 0 {
			fmt.Fprintf(&b, "Key items: %s\n", strings.Join(m.KeyItems, "; "))
		}
		if len(m.ActionItems) > 0 {
			fmt.Fprintf(&b, "Action items: %s\n", strings.Join(m.ActionItems, "; "))
		}
	}

	b.WriteString("\n## Submitted content to include\n")
	if len(src.Content) == 0 {
		b.WriteString("(none)\n")
	}
	for _, c := range src.Content {
		fmt.Fprintf(&b, "- %s [audience: %s]\n", c.Title, c.Audience)
		if c.Description != "" {
			fmt.Fprintf(&b, "  %s\n", truncate(c.Description, contentDescLimit))
		}
		if c.LinkURL != "" {
			fmt.Fprintf(&b, "  Link: %s (%s)\n", c.LinkURL, c.LinkText)
		}
		if c.TargetDate != nil {
			fmt.Fprintf(&b, "  Target date: %s\n", c.TargetDate.Format("Jan 2"))
		}
	}

	b.WriteString("\n## Recurring sections\n")
	if len(src.Templates) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range src.Templates {
		fmt.Fprintf(&b, "- key %q: %s [audience: %s]\n", t.Key, t.Title, t.Audience)
		if t.BodyTemplate != "" {
			fmt.Fprintf(&b, "  Template: %s\n", truncate(t.BodyTemplate, 400))
		}
	}

	b.WriteString("\n## PTA board\n")
	if len(src.Board) == 0 {
		b.WriteString("(none)\n")
	}
	for _, m := range src.Board {
		fmt.Fprintf(&b, "- %s, %s\n", m.Name, m.Position)
	}

	b.WriteString("\nReturn ONLY the JSON object.")
	return b.String()
}
