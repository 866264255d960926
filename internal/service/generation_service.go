package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/ai"
	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/lock"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

const DefaultGenerationTTL = 3 * time.Minute

// DraftWriter produces a newsletter draft from collected sources. *ai.Generator implements it.
type DraftWriter interface {
	GenerateEmail(ctx context.Context, src *model.CampaignSources) (*ai.EmailDraft, error)
}

type GenerationResult struct {
	Sections           []model.Section           `json:"sections"`
	Suggestions        []model.ContentSuggestion `json:"suggestions"`
	IncludedContentIDs []int                     `json:"included_content_ids"`
}

type GenerationService struct {
	Store     repository.Store
	Collector *Collector
	Writer    DraftWriter
	Locker    lock.Locker
	LockTTL   time.Duration
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

func NewGenerationService(store repository.Store, collector *Collector, writer DraftWriter, locker lock.Locker, m *metrics.Metrics, log *slog.Logger) *GenerationService {
	if log == nil {
		log = slog.Default()
	}
	return &GenerationService{
		Store:     store,
		Collector: collector,
		Writer:    writer,
		Locker:    locker,
		LockTTL:   DefaultGenerationTTL,
		Metrics:   m,
		Log:       log,
	}
}

func generationOutcome(err error) string {
	var pe *ai.ParseError
	var ve *ai.ResponseValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &ve):
		return "invalid_response"
	case errors.Is(err, appErrors.ErrGenerationInProgress):
		return "conflict"
	}
	return "error"
}

// GenerateDraft replaces every section of the campaign with a fresh AI draft and absorbs the
// school's pending inbox into it. Any failure before commit leaves the campaign untouched.
func (s *GenerationService) GenerateDraft(ctx context.Context, actor auth.Actor, campaignID int) (res *GenerationResult, err error) {
	start := time.Now()
	defer func() {
		sections, included := 0, 0
		if res != nil {
			sections, included = len(res.Sections), len(res.IncludedContentIDs)
		}
		s.Metrics.RecordGeneration(generationOutcome(err), time.Since(start), sections, included)
	}()

	if _, err := actor.RequireSchool(); err != nil {
		return nil, err
	}

	release, err := s.Locker.Acquire(ctx, fmt.Sprintf("generate:campaign:%d", campaignID), s.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, appErrors.ErrGenerationInProgress
		}
		return nil, errors.Wrap(err, "acquiring generation lock")
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.Log.Warn("releasing generation lock", slog.Int("campaign_id", campaignID), slog.Any("error", rerr))
		}
	}()

	src, err := s.Collector.Collect(ctx, actor, campaignID)
	if err != nil {
		return nil, err
	}
	if src.Campaign.IsSent() {
		return nil, appErrors.ErrCampaignSent
	}

	draft, err := s.Writer.GenerateEmail(ctx, src)
	if err != nil {
		return nil, err
	}

	contentIDs := src.ContentIDs()
	included := []int{}
	sections := make([]model.Section, len(draft.Sections))
	err = s.Store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := editableCampaign(ctx, r, actor, campaignID); err != nil {
			return err
		}
		if err := r.Sections.DeleteByCampaign(ctx, campaignID); err != nil {
			return err
		}
		for i, d := range draft.Sections {
			sec := d
			sec.ID = 0
			sec.CampaignID = campaignID
			sec.SortOrder = i
			if err := r.Sections.Create(ctx, &sec); err != nil {
				return err
			}
			sections[i] = sec
		}
		if len(contentIDs) == 0 {
			return nil
		}
		// Items skipped or included elsewhere since collection are left alone.
		ids, err := r.Content.MarkAllIncluded(ctx, src.School.ID, campaignID, contentIDs)
		if err != nil {
			return err
		}
		included = ids
		return nil
	})
	if err != nil {
		return nil, err
	}

	suggestions := draft.Suggestions
	if suggestions == nil {
		suggestions = []model.ContentSuggestion{}
	}
	s.Log.Info("generated draft",
		slog.Int("campaign_id", campaignID),
		slog.Int("sections", len(sections)),
		slog.Int("suggestions", len(suggestions)),
		slog.Int("content_collected", len(contentIDs)),
		slog.Int("content_included", len(included)),
	)
	return &GenerationResult{Sections: sections, Suggestions: suggestions, IncludedContentIDs: included}, nil
}
