// internal/service/campaign_service.go
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/htmlx"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/queue"
	"github.com/unclebandit/pta-newsletter/internal/repository"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

const dateLayout = "2006-01-02"

type CampaignService struct {
	Store    repository.Store
	Compiler *Compiler
	Queue    queue.Queue
	Validate *validation.Validator
	Metrics  *metrics.Metrics
	Log      *slog.Logger
	Now      func() time.Time
}

func NewCampaignService(store repository.Store, compiler *Compiler, q queue.Queue, v *validation.Validator, m *metrics.Metrics, log *slog.Logger) *CampaignService {
	if log == nil {
		log = slog.Default()
	}
	return &CampaignService{Store: store, Compiler: compiler, Queue: q, Validate: v, Metrics: m, Log: log, Now: time.Now}
}

type NewCampaign struct {
	Title     string `json:"title" validate:"omitempty,max=200"`
	WeekStart string `json:"week_start" validate:"required,datetime=2006-01-02"`
	WeekEnd   string `json:"week_end" validate:"required,datetime=2006-01-02"`
}

// CampaignPatch edits a draft's title or week. Omitted fields keep their value and an
// empty title falls back to the default for the week.
type CampaignPatch struct {
	Title     *string `json:"title" validate:"omitempty,max=200"`
	WeekStart *string `json:"week_start" validate:"omitempty,datetime=2006-01-02"`
	WeekEnd   *string `json:"week_end" validate:"omitempty,datetime=2006-01-02"`
}

// CampaignDetails is a campaign with its ordered sections and delivery progress.
type CampaignDetails struct {
	model.Campaign
	Sections   []model.Section  `json:"sections"`
	Deliveries []model.Delivery `json:"deliveries"`
}

// Export is one audience document in both formats.
type Export struct {
	Audience model.Audience `json:"audience"`
	HTML     string         `json:"html"`
	Text     string         `json:"text"`
}

func parseDay(field, v string) (time.Time, error) {
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, appErrors.NewValidationError(nil, appErrors.FieldError{
			Field: field,
			Error: field + " must be a date in YYYY-MM-DD format",
		})
	}
	return d, nil
}

func checkWeek(weekStart, weekEnd time.Time) error {
	if weekEnd.Before(weekStart) {
		return appErrors.NewValidationError(nil, appErrors.FieldError{
			Field: "week_end",
			Error: "week_end must not be before week_start",
		})
	}
	return nil
}

func defaultTitle(weekStart time.Time) string {
	return "Week of " + weekStart.Format("January 2, 2006")
}

// CreateCampaign opens a draft for one week. A school has at most one campaign per week.
func (s *CampaignService) CreateCampaign(ctx context.Context, actor auth.Actor, in NewCampaign) (*model.Campaign, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	if err := s.Validate.Struct(in); err != nil {
		return nil, err
	}
	weekStart, err := parseDay("week_start", in.WeekStart)
	if err != nil {
		return nil, err
	}
	weekEnd, err := parseDay("week_end", in.WeekEnd)
	if err != nil {
		return nil, err
	}
	if err := checkWeek(weekStart, weekEnd); err != nil {
		return nil, err
	}

	c, created, err := s.ensureCampaign(ctx, schoolID, actor.UserID, strings.TrimSpace(in.Title), weekStart, weekEnd)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, appErrors.ErrCampaignExists
	}
	return c, nil
}

// EnsureWeeklyDraft creates the draft for schoolID's week starting at weekStart unless one
// exists. Used by the scheduled job.
func (s *CampaignService) EnsureWeeklyDraft(ctx context.Context, schoolID int, weekStart time.Time) (*model.Campaign, bool, error) {
	weekStart = startOfDay(weekStart)
	return s.ensureCampaign(ctx, schoolID, 0, "", weekStart, weekStart.AddDate(0, 0, 6))
}

func (s *CampaignService) ensureCampaign(ctx context.Context, schoolID, createdBy int, title string, weekStart, weekEnd time.Time) (*model.Campaign, bool, error) {
	if title == "" {
		title = defaultTitle(weekStart)
	}
	var out *model.Campaign
	var created bool
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		existing, err := r.Campaigns.GetBySchoolAndWeek(ctx, schoolID, weekStart)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}
		c := &model.Campaign{
			SchoolID:  schoolID,
			Title:     title,
			WeekStart: weekStart,
			WeekEnd:   weekEnd,
			Status:    model.CampaignStatusDraft,
			CreatedBy: createdBy,
		}
		if err := r.Campaigns.Create(ctx, c); err != nil {
			return err
		}
		out, created = c, true
		return nil
	})
	if errors.Is(err, appErrors.ErrCampaignExists) {
		// Lost a race with a concurrent insert for the same week.
		existing, gerr := s.Store.Repos().Campaigns.GetBySchoolAndWeek(ctx, schoolID, weekStart)
		if gerr != nil {
			return nil, false, gerr
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return out, created, err
}

// UpdateCampaign changes a draft's title or week. The week stays unique per school.
func (s *CampaignService) UpdateCampaign(ctx context.Context, actor auth.Actor, id int, in CampaignPatch) (*model.Campaign, error) {
	if err := s.Validate.Struct(in); err != nil {
		return nil, err
	}

	var out *model.Campaign
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		c, err := editableCampaign(ctx, r, actor, id)
		if err != nil {
			return err
		}
		if in.WeekStart != nil {
			if c.WeekStart, err = parseDay("week_start", *in.WeekStart); err != nil {
				return err
			}
		}
		if in.WeekEnd != nil {
			if c.WeekEnd, err = parseDay("week_end", *in.WeekEnd); err != nil {
				return err
			}
		}
		if err := checkWeek(c.WeekStart, c.WeekEnd); err != nil {
			return err
		}
		if in.Title != nil {
			c.Title = strings.TrimSpace(*in.Title)
			if c.Title == "" {
				c.Title = defaultTitle(c.WeekStart)
			}
		}
		if err := r.Campaigns.Update(ctx, c); err != nil {
			return err
		}
		now := s.Now().UTC()
		c.UpdatedAt = &now
		out = c
		return nil
	})
	return out, err
}

// ListCampaigns fetches the school's campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, actor auth.Actor, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, nil, err
	}
	if status != "" && !model.CampaignStatus(status).Valid() {
		return nil, nil, appErrors.NewValidationError(nil, appErrors.FieldError{Field: "status", Error: "status must be one of draft review sent"})
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.Store.Repos().Campaigns.ListCampaigns(ctx, schoolID, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, actor auth.Actor, id int) (*CampaignDetails, error) {
	r := s.Store.Repos()
	c, err := campaignFor(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	sections, err := r.Sections.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	deliveries, err := r.Deliveries.ListByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: *c, Sections: sections, Deliveries: deliveries}, nil
}

// UpdateStatus moves a campaign between draft and review. Moving to sent goes through Send.
func (s *CampaignService) UpdateStatus(ctx context.Context, actor auth.Actor, id int, status model.CampaignStatus) (*model.Campaign, error) {
	if status == model.CampaignStatusSent {
		return s.Send(ctx, actor, id)
	}
	if !status.Valid() {
		return nil, appErrors.NewValidationError(nil, appErrors.FieldError{Field: "status", Error: "status must be one of draft review sent"})
	}

	var out *model.Campaign
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		c, err := editableCampaign(ctx, r, actor, id)
		if err != nil {
			return err
		}
		if c.Status == status {
			out = c
			return nil
		}
		if err := r.Campaigns.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		c.Status = status
		out = c
		return nil
	})
	return out, err
}

func (s *CampaignService) compile(ctx context.Context, r repository.Repos, c *model.Campaign) (Rendered, error) {
	school, err := r.Sources.GetSchool(ctx, c.SchoolID)
	if err != nil {
		return Rendered{}, err
	}
	sections, err := r.Sections.ListByCampaign(ctx, c.ID)
	if err != nil {
		return Rendered{}, err
	}
	return s.Compiler.Compile(school.Name, sections)
}

// Compile renders both audience documents from the current sections and stores them.
func (s *CampaignService) Compile(ctx context.Context, actor auth.Actor, id int) (*model.Campaign, error) {
	var out *model.Campaign
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		c, err := editableCampaign(ctx, r, actor, id)
		if err != nil {
			return err
		}
		rendered, err := s.compile(ctx, r, c)
		if err != nil {
			return err
		}
		if err := r.Campaigns.SaveCompiled(ctx, id, rendered.PTAHTML, rendered.SchoolHTML); err != nil {
			return err
		}
		c.PTAHTML, c.SchoolHTML = rendered.PTAHTML, rendered.SchoolHTML
		out = c
		return nil
	})
	return out, err
}

// Preview renders both documents without persisting. A sent campaign previews its stored
// documents.
func (s *CampaignService) Preview(ctx context.Context, actor auth.Actor, id int) (*Rendered, error) {
	r := s.Store.Repos()
	c, err := campaignFor(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	if c.IsSent() {
		return &Rendered{PTAHTML: c.PTAHTML, SchoolHTML: c.SchoolHTML}, nil
	}
	rendered, err := s.compile(ctx, r, c)
	if err != nil {
		return nil, err
	}
	return &rendered, nil
}

// Send compiles the latest sections, stores both documents and freezes the campaign. The
// delivery job is published afterwards; a publish failure is logged and the send stands.
func (s *CampaignService) Send(ctx context.Context, actor auth.Actor, id int) (*model.Campaign, error) {
	now := s.Now().UTC()
	var out *model.Campaign
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		c, err := editableCampaign(ctx, r, actor, id)
		if err != nil {
			return err
		}
		rendered, err := s.compile(ctx, r, c)
		if err != nil {
			return err
		}
		if err := r.Campaigns.SaveCompiled(ctx, id, rendered.PTAHTML, rendered.SchoolHTML); err != nil {
			return err
		}
		if err := r.Campaigns.MarkSent(ctx, id, actor.UserID, now); err != nil {
			return err
		}
		sentBy := actor.UserID
		c.PTAHTML, c.SchoolHTML = rendered.PTAHTML, rendered.SchoolHTML
		c.Status = model.CampaignStatusSent
		c.SentAt, c.SentBy = &now, &sentBy
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordSend()

	job := model.DeliveryJob{CampaignID: out.ID, SchoolID: out.SchoolID, SentBy: actor.UserID, SentAt: now}
	if s.Queue == nil {
		s.Log.Warn("no delivery queue configured, campaign will not be emailed", slog.Int("campaign_id", out.ID))
	} else if err := s.Queue.Publish(ctx, queue.DeliveryTopic, job); err != nil {
		s.Log.Error("failed to enqueue delivery", slog.Int("campaign_id", out.ID), slog.Any("error", err))
	}

	s.Log.Info("campaign sent", slog.Int("campaign_id", out.ID), slog.Int("sent_by", actor.UserID))
	return out, nil
}

// ExportCampaign returns one audience document as HTML and plain text.
func (s *CampaignService) ExportCampaign(ctx context.Context, actor auth.Actor, id int, audience model.Audience) (*Export, error) {
	rendered, err := s.Preview(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	doc := rendered.SchoolHTML
	if audience == model.AudiencePTAOnly {
		doc = rendered.PTAHTML
	}
	return &Export{Audience: audience, HTML: doc, Text: htmlx.ToText(doc)}, nil
}
