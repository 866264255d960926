package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

const (
	LookaheadDays       = 14
	MinutesLookbackDays = 60
	MinutesLimit        = 3
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endOfDay is 23:59:59.999 on t's date.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// WeekWindow covers weekStart 00:00 through weekEnd 23:59:59.999, both inclusive.
func WeekWindow(weekStart, weekEnd time.Time) repository.TimeWindow {
	return repository.TimeWindow{From: startOfDay(weekStart), To: endOfDay(weekEnd)}
}

// LookaheadWindow starts after weekEnd 00:00 and runs LookaheadDays past weekEnd.
// An event starting exactly at weekEnd 00:00 is excluded.
func LookaheadWindow(weekEnd time.Time) repository.TimeWindow {
	return repository.TimeWindow{
		From:          startOfDay(weekEnd),
		To:            endOfDay(weekEnd.AddDate(0, 0, LookaheadDays)),
		FromExclusive: true,
	}
}

// Collector gathers the read-only context a draft is written from.
type Collector struct {
	Store repository.Store
	Log   *slog.Logger
	Now   func() time.Time
}

func NewCollector(store repository.Store, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{Store: store, Log: log, Now: time.Now}
}

// Collect resolves the campaign within the actor's school and fetches every source list.
// A failing source is logged and contributes an empty list.
func (c *Collector) Collect(ctx context.Context, actor auth.Actor, campaignID int) (*model.CampaignSources, error) {
	r := c.Store.Repos()
	campaign, err := campaignFor(ctx, r, actor, campaignID)
	if err != nil {
		return nil, err
	}
	school, err := r.Sources.GetSchool(ctx, campaign.SchoolID)
	if err != nil {
		return nil, err
	}

	log := c.Log.With(slog.Int("campaign_id", campaign.ID), slog.Int("school_id", school.ID))
	src := &model.CampaignSources{School: *school, Campaign: *campaign}

	src.Events = orEmpty(log, "events", func() ([]model.CalendarEvent, error) {
		return r.Sources.ListEvents(ctx, school.ID, WeekWindow(campaign.WeekStart, campaign.WeekEnd))
	})
	src.Lookahead = orEmpty(log, "lookahead events", func() ([]model.CalendarEvent, error) {
		return r.Sources.ListEvents(ctx, school.ID, LookaheadWindow(campaign.WeekEnd))
	})
	since := startOfDay(c.Now().AddDate(0, 0, -MinutesLookbackDays))
	src.Minutes = orEmpty(log, "minutes", func() ([]model.MinutesRecord, error) {
		return r.Sources.ListApprovedMinutes(ctx, school.ID, since, MinutesLimit)
	})
	src.Content = orEmpty(log, "content items", func() ([]model.ContentItem, error) {
		return r.Content.ListPending(ctx, school.ID)
	})
	src.Templates = orEmpty(log, "recurring templates", func() ([]model.RecurringTemplate, error) {
		return r.Sources.ListActiveTemplates(ctx, school.ID)
	})
	src.Board = orEmpty(log, "board roster", func() ([]model.BoardMember, error) {
		return r.Sources.ListApprovedBoard(ctx, school.ID)
	})

	log.Info("collected campaign sources",
		slog.Int("events", len(src.Events)),
		slog.Int("lookahead", len(src.Lookahead)),
		slog.Int("minutes", len(src.Minutes)),
		slog.Int("content", len(src.Content)),
		slog.Int("templates", len(src.Templates)),
		slog.Int("board", len(src.Board)),
	)
	return src, nil
}

func orEmpty[T any](log *slog.Logger, what string, fetch func() ([]T, error)) []T {
	items, err := fetch()
	if err != nil {
		log.Warn("source fetch failed, continuing without it", slog.String("source", what), slog.Any("error", err))
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}
