package model

type SuggestionSource string

const (
	SuggestionSourceCalendar SuggestionSource = "calendar"
	SuggestionSourceMinutes  SuggestionSource = "minutes"
	SuggestionSourcePattern  SuggestionSource = "pattern"
)

type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

// ContentSuggestion is an AI recommendation that is never persisted. It becomes a Section
// only when a board member adds it.
type ContentSuggestion struct {
	Title          string             `json:"title"`
	Reason         string             `json:"reason"`
	Source         SuggestionSource   `json:"source"`
	Priority       SuggestionPriority `json:"priority"`
	SuggestedBlurb string             `json:"suggested_blurb,omitempty"`
}
