package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                 "{\"a\":1}",
		"```json\n{\"a\":1}\n```":   "{\"a\":1}",
		"```\n{\"a\":1}\n```\n":     "{\"a\":1}",
		"  ```JSON\n{\"a\":1}```  ": "{\"a\":1}",
		"```{\"a\":1}```":           "{\"a\":1}",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripCodeFence(in), in)
	}
}

func TestParseEmailResponse_FencedAndCoerced(t *testing.T) {
	raw := "```json\n" + `{
		"sections": [
			{"title": "This Week", "body": "<p>Hi</p>", "audience": "everyone", "sectionType": "calendar_summary"},
			{"title": "Board Vote", "body": "<p>Vote</p>", "audience": "pta_only", "sectionType": "newsletter", "linkUrl": null}
		],
		"suggestions": [
			{"title": "Book Fair", "reason": "in two weeks", "source": "calendar", "priority": "urgent"},
			{"title": "Thank volunteers", "reason": "minutes", "source": "slack", "priority": "low", "suggestedBlurb": "<p>Thanks!</p>"}
		]
	}` + "\n```"

	draft, err := ParseEmailResponse(validation.New(), raw)
	require.NoError(t, err)

	require.Len(t, draft.Sections, 2)
	assert.Equal(t, model.AudienceAll, draft.Sections[0].Audience)
	assert.Equal(t, model.SectionTypeCalendarSummary, draft.Sections[0].SectionType)
	assert.Equal(t, 0, draft.Sections[0].SortOrder)
	assert.Equal(t, model.AudiencePTAOnly, draft.Sections[1].Audience)
	assert.Equal(t, model.SectionTypeCustom, draft.Sections[1].SectionType)
	assert.Equal(t, 1, draft.Sections[1].SortOrder)

	require.Len(t, draft.Suggestions, 2)
	assert.Equal(t, model.PriorityMedium, draft.Suggestions[0].Priority)
	assert.Equal(t, model.SuggestionSourceCalendar, draft.Suggestions[1].Source)
	assert.Equal(t, model.PriorityLow, draft.Suggestions[1].Priority)
	assert.Equal(t, "<p>Thanks!</p>", draft.Suggestions[1].SuggestedBlurb)
}

func TestParseEmailResponse_MissingSuggestionsIsEmpty(t *testing.T) {
	draft, err := ParseEmailResponse(validation.New(), `{"sections":[{"title":"A","body":"<p>a</p>"}]}`)
	require.NoError(t, err)
	assert.NotNil(t, draft.Suggestions)
	assert.Empty(t, draft.Suggestions)
}

func TestParseEmailResponse_NotJSON(t *testing.T) {
	_, err := ParseEmailResponse(validation.New(), "Sorry, I can't help with that.")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Excerpt, "Sorry")
}

func TestParseEmailResponse_EmptyReply(t *testing.T) {
	_, err := ParseEmailResponse(validation.New(), "")
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseEmailResponse_SectionWithoutTitle(t *testing.T) {
	raw := `{"sections":[{"title":"ok","body":"<p>x</p>"},{"title":"","body":"<p>y</p>"}]}`
	_, err := ParseEmailResponse(validation.New(), raw)

	var verr *ResponseValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "sections[1].title", verr.Fields[0].Field)
}

func TestParseEmailResponse_LooseFields(t *testing.T) {
	raw := `{
		"sections": [
			{"title": "Spirit Week", "audience": 3, "sectionType": {"kind": "recurring"}},
			{"title": "Board", "body": null, "audience": "pta_only", "sectionType": false}
		],
		"suggestions": [
			{"reason": "no title"},
			"just a string",
			{"title": "Picture Day", "source": 7, "priority": ["high"]}
		]
	}`
	draft, err := ParseEmailResponse(validation.New(), raw)
	require.NoError(t, err)

	require.Len(t, draft.Sections, 2)
	assert.Equal(t, "", draft.Sections[0].Body)
	assert.Equal(t, model.AudienceAll, draft.Sections[0].Audience)
	assert.Equal(t, model.SectionTypeCustom, draft.Sections[0].SectionType)
	assert.Equal(t, "", draft.Sections[1].Body)
	assert.Equal(t, model.AudiencePTAOnly, draft.Sections[1].Audience)
	assert.Equal(t, model.SectionTypeCustom, draft.Sections[1].SectionType)

	require.Len(t, draft.Suggestions, 1)
	assert.Equal(t, "Picture Day", draft.Suggestions[0].Title)
	assert.Equal(t, model.SuggestionSourceCalendar, draft.Suggestions[0].Source)
	assert.Equal(t, model.PriorityMedium, draft.Suggestions[0].Priority)
}

func TestParseEmailResponse_SuggestionsNotAList(t *testing.T) {
	draft, err := ParseEmailResponse(validation.New(), `{"sections":[{"title":"A"}],"suggestions":"none"}`)
	require.NoError(t, err)
	assert.Empty(t, draft.Suggestions)
}

func TestParseEmailResponse_MissingSections(t *testing.T) {
	_, err := ParseEmailResponse(validation.New(), `{"suggestions":[]}`)
	var verr *ResponseValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sections", verr.Fields[0].Field)
}

func TestParseEmailResponse_SectionsNotAList(t *testing.T) {
	for _, raw := range []string{`{"sections":"none"}`, `{"sections":{"title":"A"}}`, `{"sections":["A"]}`} {
		_, err := ParseEmailResponse(validation.New(), raw)
		var verr *ResponseValidationError
		require.ErrorAs(t, err, &verr, raw)
		assert.Contains(t, verr.Fields[0].Field, "sections", raw)
	}
}

func TestParseEventRecommendations(t *testing.T) {
	raw := `{"suggestedTasks":[{"title":"Book the gym","daysBefore":21}],"tips":["Order extra pizza"]}`
	recs, err := ParseEventRecommendations(validation.New(), raw)
	require.NoError(t, err)
	assert.Equal(t, 21, recs.SuggestedTasks[0].DaysBefore)
	assert.Equal(t, []string{"Order extra pizza"}, recs.Tips)
	assert.NotNil(t, recs.VolunteerRoles)
	assert.NotNil(t, recs.Timeline)

	_, err = ParseEventRecommendations(validation.New(), `{"suggestedTasks":[{"title":"x","daysBefore":-1}]}`)
	var verr *ResponseValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestParseOnboardingGuide(t *testing.T) {
	raw := "```\n" + `{"overview":"You keep the money straight.","keyResponsibilities":["Reconcile accounts"],"firstSteps":["Get bank access"],"tips":[],"resources":[{"title":"PTA handbook"}]}` + "\n```"
	guide, err := ParseOnboardingGuide(validation.New(), raw)
	require.NoError(t, err)
	assert.Equal(t, "You keep the money straight.", guide.Overview)
	assert.Len(t, guide.Resources, 1)

	_, err = ParseOnboardingGuide(validation.New(), `{"keyResponsibilities":["x"]}`)
	var verr *ResponseValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "overview", verr.Fields[0].Field)
}
