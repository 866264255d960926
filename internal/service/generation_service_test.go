package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/llm/llmtest"
	"github.com/unclebandit/pta-newsletter/internal/lock"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const draftReply = "```json\n" + `{
  "sections": [
    {"title": "This Week at Maple", "body": "<p>Science Fair Wednesday, Book Fair Friday.</p>", "audience": "all", "sectionType": "calendar_summary"},
    {"title": "Lost and Found", "body": "<p>Bins are full.</p>", "audience": "everyone", "sectionType": "custom"},
    {"title": "Board Notes", "body": "<p>Budget approved.</p>", "audience": "pta_only", "sectionType": "mystery"}
  ],
  "suggestions": [
    {"title": "Recruit judges", "reason": "Action item from April minutes", "source": "minutes", "priority": "high"},
    {"title": "Field Day", "reason": "Coming up soon", "source": "calendar", "priority": "urgent"}
  ]
}` + "\n```"

func seedWeek(t *testing.T, f *fixture) (*model.Campaign, *model.ContentItem) {
	t.Helper()
	c := f.newCampaign(t)
	f.store.AddEvent(model.CalendarEvent{SchoolID: f.school.ID, Title: "Science Fair", StartTime: weekStart.Add(50 * time.Hour)})
	f.store.AddEvent(model.CalendarEvent{SchoolID: f.school.ID, Title: "Book Fair", StartTime: weekStart.Add(98 * time.Hour)})
	return c, f.submit(t, "Lost and Found")
}

func TestGenerateDraft_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, item := seedWeek(t, f)
	fake := llmtest.New(draftReply)
	gen := f.generation(ai.NewGenerator(fake, validation.New(), 0, nil), nil)

	res, err := gen.GenerateDraft(ctx, f.actor, c.ID)
	require.NoError(t, err)

	require.Len(t, res.Sections, 3)
	requireDense(t, res.Sections)
	assert.Equal(t, model.AudienceAll, res.Sections[1].Audience)
	assert.Equal(t, model.SectionTypeCustom, res.Sections[2].SectionType)
	require.Len(t, res.Suggestions, 2)
	assert.Equal(t, model.PriorityMedium, res.Suggestions[1].Priority)
	assert.Equal(t, []int{item.ID}, res.IncludedContentIDs)

	stored := f.sectionList(t, c.ID)
	assert.Equal(t, titles(res.Sections), titles(stored))

	got, err := f.store.Repos().Content.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentStatusIncluded, got.Status)
	require.NotNil(t, got.IncludedInCampaignID)
	assert.Equal(t, c.ID, *got.IncludedInCampaignID)

	require.Equal(t, 1, fake.Calls())
	assert.Contains(t, fake.Requests[0].Prompt, "Science Fair")
	assert.Contains(t, fake.Requests[0].Prompt, "Book Fair")
	assert.Contains(t, fake.Requests[0].Prompt, "Lost and Found")
}

// skipDuringWrite skips an inbox item while the model is still writing.
type skipDuringWrite struct {
	service.DraftWriter
	skip func() error
}

func (w skipDuringWrite) GenerateEmail(ctx context.Context, src *model.CampaignSources) (*ai.EmailDraft, error) {
	if err := w.skip(); err != nil {
		return nil, err
	}
	return w.DraftWriter.GenerateEmail(ctx, src)
}

func TestGenerateDraft_ReportsOnlyItemsItIncluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, kept := seedWeek(t, f)
	skipped := f.submit(t, "Bake Sale")

	writer := skipDuringWrite{
		DraftWriter: ai.NewGenerator(llmtest.New(draftReply), validation.New(), 0, nil),
		skip:        func() error { return f.content.SkipContentItem(ctx, f.actor, skipped.ID) },
	}
	before := testutil.ToFloat64(f.metrics.ContentIncluded)

	res, err := f.generation(writer, nil).GenerateDraft(ctx, f.actor, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{kept.ID}, res.IncludedContentIDs)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ContentIncluded)-before)

	got, err := f.store.Repos().Content.GetByID(ctx, skipped.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentStatusSkipped, got.Status)
	assert.Nil(t, got.IncludedInCampaignID)
}

func TestGenerateDraft_ReplacesExistingSections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := seedWeek(t, f)
	old := []*model.Section{
		f.addSection(t, c.ID, "Old 1", model.AudienceAll),
		f.addSection(t, c.ID, "Old 2", model.AudienceAll),
		f.addSection(t, c.ID, "Old 3", model.AudienceAll),
		f.addSection(t, c.ID, "Old 4", model.AudienceAll),
	}
	gen := f.generation(ai.NewGenerator(llmtest.New(draftReply), validation.New(), 0, nil), nil)

	_, err := gen.GenerateDraft(ctx, f.actor, c.ID)
	require.NoError(t, err)

	stored := f.sectionList(t, c.ID)
	require.Len(t, stored, 3)
	requireDense(t, stored)
	for _, o := range old {
		_, err := f.store.Repos().Sections.GetByID(ctx, o.ID)
		assert.True(t, appErrors.IsNotFound(err), "old section %d should be gone", o.ID)
	}
}

func TestGenerateDraft_ParseFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, item := seedWeek(t, f)
	f.addSection(t, c.ID, "Keep me", model.AudienceAll)
	before := f.sectionList(t, c.ID)

	gen := f.generation(ai.NewGenerator(llmtest.New("Sorry, I can't help with that."), validation.New(), 0, nil), nil)
	_, err := gen.GenerateDraft(ctx, f.actor, c.ID)
	var pe *ai.ParseError
	require.ErrorAs(t, err, &pe)

	assert.Equal(t, before, f.sectionList(t, c.ID))
	got, err := f.store.Repos().Content.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentStatusPending, got.Status)
}

func TestGenerateDraft_SchemaFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := seedWeek(t, f)
	f.addSection(t, c.ID, "Keep me", model.AudienceAll)

	gen := f.generation(ai.NewGenerator(llmtest.New(`{"sections":[{"body":"<p>no title</p>"}],"suggestions":[]}`), validation.New(), 0, nil), nil)
	_, err := gen.GenerateDraft(ctx, f.actor, c.ID)
	var ve *ai.ResponseValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"Keep me"}, titles(f.sectionList(t, c.ID)))
}

func TestGenerateDraft_RollsBackWhenInclusionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, item := seedWeek(t, f)
	f.addSection(t, c.ID, "Keep me", model.AudienceAll)
	f.store.FailOn("content.MarkAllIncluded", errors.New("connection reset"))

	gen := f.generation(ai.NewGenerator(llmtest.New(draftReply), validation.New(), 0, nil), nil)
	_, err := gen.GenerateDraft(ctx, f.actor, c.ID)
	require.Error(t, err)

	assert.Equal(t, []string{"Keep me"}, titles(f.sectionList(t, c.ID)))
	got, err := f.store.Repos().Content.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentStatusPending, got.Status)
}

func TestGenerateDraft_ConcurrentRunIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := seedWeek(t, f)
	locker := lock.NewLocalLocker()
	fake := llmtest.New(draftReply)
	gen := f.generation(ai.NewGenerator(fake, validation.New(), 0, nil), locker)

	release, err := locker.Acquire(ctx, fmt.Sprintf("generate:campaign:%d", c.ID), time.Minute)
	require.NoError(t, err)

	_, err = gen.GenerateDraft(ctx, f.actor, c.ID)
	assert.ErrorIs(t, err, appErrors.ErrGenerationInProgress)
	assert.Equal(t, 0, fake.Calls())

	require.NoError(t, release(ctx))
	_, err = gen.GenerateDraft(ctx, f.actor, c.ID)
	require.NoError(t, err)
	_, err = gen.GenerateDraft(ctx, f.actor, c.ID)
	assert.NoError(t, err, "lock is released after each run")
}

func TestGenerateDraft_SentCampaign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := seedWeek(t, f)
	_, err := f.campaigns.Send(ctx, f.actor, c.ID)
	require.NoError(t, err)

	fake := llmtest.New(draftReply)
	_, err = f.generation(ai.NewGenerator(fake, validation.New(), 0, nil), nil).GenerateDraft(ctx, f.actor, c.ID)
	assert.ErrorIs(t, err, appErrors.ErrCampaignSent)
	assert.Equal(t, 0, fake.Calls())
}
