package ai

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const excerptLen = 200

// stripCodeFence removes a ```json ... ``` or ``` ... ``` wrapper.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "..."
}

// decodeInto unmarshals a model reply into dst, applies coerce, then validates dst.
func decodeInto(v *validation.Validator, raw string, dst interface{}, coerce func()) error {
	body := stripCodeFence(raw)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ResponseValidationError{Fields: []appErrors.FieldError{{
				Field: typeErr.Field,
				Error: "expected " + typeErr.Type.String() + ", got " + typeErr.Value,
			}}}
		}
		return &ParseError{Excerpt: excerpt(body), Err: err}
	}

	if coerce != nil {
		coerce()
	}

	if err := v.Struct(dst); err != nil {
		var verr *appErrors.ValidationError
		if errors.As(err, &verr) {
			return &ResponseValidationError{Fields: verr.Fields}
		}
		return err
	}
	return nil
}

// text decodes any JSON value. Anything but a string becomes "", which the coercion
// step then maps to a default.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = text(s)
	return nil
}

type sectionDraft struct {
	Title        text `json:"title" validate:"required,max=300"`
	Body         text `json:"body"`
	LinkURL      text `json:"linkUrl" validate:"omitempty,max=2048"`
	LinkText     text `json:"linkText" validate:"omitempty,max=300"`
	Audience     text `json:"audience" validate:"oneof=all pta_only"`
	SectionType  text `json:"sectionType" validate:"oneof=calendar_summary custom recurring"`
	RecurringKey text `json:"recurringKey" validate:"omitempty,max=100"`
}

type suggestionDraft struct {
	Title          text `json:"title" validate:"required,max=300"`
	Reason         text `json:"reason"`
	Source         text `json:"source" validate:"oneof=calendar minutes pattern"`
	Priority       text `json:"priority" validate:"oneof=high medium low"`
	SuggestedBlurb text `json:"suggestedBlurb"`
}

// Suggestions are decoded item by item later; a bad one is dropped, not fatal.
type emailResponse struct {
	Sections    []sectionDraft  `json:"sections" validate:"required,dive"`
	Suggestions json.RawMessage `json:"suggestions"`
}

// EmailDraft is a parsed newsletter draft. Sections are unsaved and carry their position
// as SortOrder.
type EmailDraft struct {
	Sections    []model.Section           `json:"sections"`
	Suggestions []model.ContentSuggestion `json:"suggestions"`
}

func coerceSource(s text) model.SuggestionSource {
	switch src := model.SuggestionSource(s); src {
	case model.SuggestionSourceMinutes, model.SuggestionSourcePattern:
		return src
	}
	return model.SuggestionSourceCalendar
}

func coercePriority(s text) model.SuggestionPriority {
	switch p := model.SuggestionPriority(s); p {
	case model.PriorityHigh, model.PriorityLow:
		return p
	}
	return model.PriorityMedium
}

// suggestionsFrom keeps the suggestions that decode and validate after coercion.
func suggestionsFrom(v *validation.Validator, raw json.RawMessage) []model.ContentSuggestion {
	out := []model.ContentSuggestion{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var s suggestionDraft
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		s.Source = text(coerceSource(s.Source))
		s.Priority = text(coercePriority(s.Priority))
		if v.Struct(s) != nil {
			continue
		}
		out = append(out, model.ContentSuggestion{
			Title:          strings.TrimSpace(string(s.Title)),
			Reason:         string(s.Reason),
			Source:         model.SuggestionSource(s.Source),
			Priority:       model.SuggestionPriority(s.Priority),
			SuggestedBlurb: string(s.SuggestedBlurb),
		})
	}
	return out
}

// ParseEmailResponse turns a model reply into an EmailDraft. Unknown or non-string
// audience, section type, suggestion source and priority values fall back to all, custom,
// calendar and medium, and a missing body is empty. Suggestions that still fail
// validation are dropped. Only a malformed sections list is an error.
func ParseEmailResponse(v *validation.Validator, raw string) (*EmailDraft, error) {
	var resp emailResponse
	err := decodeInto(v, raw, &resp, func() {
		for i := range resp.Sections {
			s := &resp.Sections[i]
			s.Audience = text(model.ParseAudience(string(s.Audience)))
			s.SectionType = text(model.ParseSectionType(string(s.SectionType)))
		}
	})
	if err != nil {
		return nil, err
	}

	draft := &EmailDraft{
		Sections:    make([]model.Section, 0, len(resp.Sections)),
		Suggestions: suggestionsFrom(v, resp.Suggestions),
	}
	for i, s := range resp.Sections {
		draft.Sections = append(draft.Sections, model.Section{
			Title:        strings.TrimSpace(string(s.Title)),
			Body:         string(s.Body),
			LinkURL:      string(s.LinkURL),
			LinkText:     string(s.LinkText),
			Audience:     model.Audience(s.Audience),
			SectionType:  model.SectionType(s.SectionType),
			RecurringKey: string(s.RecurringKey),
			SortOrder:    i,
		})
	}
	return draft, nil
}
