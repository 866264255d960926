package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	"github.com/unclebandit/pta-newsletter/internal/lock"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/queue"
	"github.com/unclebandit/pta-newsletter/internal/repository/memory"
	"github.com/unclebandit/pta-newsletter/internal/service"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

var (
	weekStart = time.Date(2026, 4, 13, 0, 0, 0, 0, time.UTC)
	weekEnd   = time.Date(2026, 4, 19, 0, 0, 0, 0, time.UTC)
	testNow   = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
)

// recordingQueue captures published payloads.
type recordingQueue struct {
	mu        sync.Mutex
	published []any
	err       error
}

func (q *recordingQueue) Publish(_ context.Context, _ string, payload any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, payload)
	return nil
}

func (q *recordingQueue) Subscribe(string, queue.Handler) error { return nil }
func (q *recordingQueue) Close() error                          { return nil }

type fixture struct {
	store     *memory.Store
	school    model.School
	other     model.School
	actor     auth.Actor
	validate  *validation.Validator
	metrics   *metrics.Metrics
	queue     *recordingQueue
	campaigns *service.CampaignService
	sections  *service.SectionService
	content   *service.ContentService
	collector *service.Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		school:   store.AddSchool(model.School{Name: "Maple", PTAListEmail: "pta@maple.test", FamiliesListEmail: "families@maple.test"}),
		other:    store.AddSchool(model.School{Name: "Oak"}),
		validate: validation.New(),
		metrics:  metrics.New(prometheus.NewRegistry()),
		queue:    &recordingQueue{},
	}
	f.actor = auth.Actor{UserID: 10, SchoolID: f.school.ID, Roles: []string{auth.RoleBoard}}

	f.campaigns = service.NewCampaignService(store, service.NewCompiler(), f.queue, f.validate, f.metrics, nil)
	f.campaigns.Now = func() time.Time { return testNow }
	f.sections = service.NewSectionService(store, f.validate)
	f.content = service.NewContentService(store, f.validate, f.metrics)
	f.collector = service.NewCollector(store, nil)
	f.collector.Now = func() time.Time { return testNow }
	return f
}

func (f *fixture) newCampaign(t *testing.T) *model.Campaign {
	t.Helper()
	c, err := f.campaigns.CreateCampaign(context.Background(), f.actor, service.NewCampaign{
		WeekStart: weekStart.Format("2006-01-02"),
		WeekEnd:   weekEnd.Format("2006-01-02"),
	})
	require.NoError(t, err)
	return c
}

func (f *fixture) addSection(t *testing.T, campaignID int, title string, aud model.Audience) *model.Section {
	t.Helper()
	s, err := f.sections.AddSection(context.Background(), f.actor, campaignID, service.NewSection{
		Title:    title,
		Body:     "<p>" + title + " body</p>",
		Audience: string(aud),
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) submit(t *testing.T, title string) *model.ContentItem {
	t.Helper()
	item, err := f.content.SubmitContent(context.Background(), f.actor, service.NewContentItem{
		Title:       title,
		Description: title + " details",
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) sectionList(t *testing.T, campaignID int) []model.Section {
	t.Helper()
	list, err := f.sections.ListSections(context.Background(), f.actor, campaignID)
	require.NoError(t, err)
	return list
}

func (f *fixture) generation(writer service.DraftWriter, locker lock.Locker) *service.GenerationService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return service.NewGenerationService(f.store, f.collector, writer, locker, f.metrics, nil)
}

func requireDense(t *testing.T, sections []model.Section) {
	t.Helper()
	for i, s := range sections {
		require.Equal(t, i, s.SortOrder, "section %d (%s)", s.ID, s.Title)
	}
}
