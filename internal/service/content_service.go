package service

import (
	"context"
	"html"
	"strings"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

type NewContentImage struct {
	URL string `json:"url" validate:"required,url"`
	Alt string `json:"alt" validate:"omitempty,max=200"`
}

// NewContentItem is an inbox submission from school staff or a parent.
type NewContentItem struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"required"`
	LinkURL     string            `json:"link_url" validate:"omitempty,url"`
	LinkText    string            `json:"link_text" validate:"omitempty,max=120"`
	Audience    string            `json:"audience" validate:"omitempty,oneof=all pta_only"`
	TargetDate  string            `json:"target_date" validate:"omitempty,datetime=2006-01-02"`
	Images      []NewContentImage `json:"images" validate:"omitempty,max=10,dive"`
}

type ContentService struct {
	Store    repository.Store
	Validate *validation.Validator
	Metrics  *metrics.Metrics
}

func NewContentService(store repository.Store, v *validation.Validator, m *metrics.Metrics) *ContentService {
	return &ContentService{Store: store, Validate: v, Metrics: m}
}

// ListInbox returns the pending items of the actor's school with their images.
func (s *ContentService) ListInbox(ctx context.Context, actor auth.Actor) ([]model.ContentItem, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	return s.Store.Repos().Content.ListPending(ctx, schoolID)
}

func (s *ContentService) SubmitContent(ctx context.Context, actor auth.Actor, in NewContentItem) (*model.ContentItem, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	if err := s.Validate.Struct(in); err != nil {
		return nil, err
	}

	item := &model.ContentItem{
		SchoolID:    schoolID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		LinkURL:     in.LinkURL,
		LinkText:    in.LinkText,
		Audience:    model.ParseAudience(in.Audience),
		Status:      model.ContentStatusPending,
	}
	if in.TargetDate != "" {
		d, err := parseDay("target_date", in.TargetDate)
		if err != nil {
			return nil, err
		}
		item.TargetDate = &d
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		item.SubmittedBy = &uid
	}
	for i, img := range in.Images {
		item.Images = append(item.Images, model.ContentImage{URL: img.URL, Alt: img.Alt, SortOrder: i})
	}

	// The item and its images are written together or not at all.
	err = s.Store.WithinTx(ctx, func(r repository.Repos) error {
		return r.Content.Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// IncludeContentInCampaign moves a pending item into the campaign as a new last section.
// An item that is no longer pending yields ErrContentItemResolved and nothing is created.
func (s *ContentService) IncludeContentInCampaign(ctx context.Context, actor auth.Actor, itemID, campaignID int) (*model.Section, error) {
	var sec *model.Section
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		c, err := editableCampaign(ctx, r, actor, campaignID)
		if err != nil {
			return err
		}
		item, err := r.Content.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if item.SchoolID != c.SchoolID {
			return appErrors.NewContentItemNotFound(itemID)
		}

		ok, err := r.Content.MarkIncluded(ctx, item.ID, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return appErrors.ErrContentItemResolved
		}

		next, err := r.Sections.NextSortOrder(ctx, c.ID)
		if err != nil {
			return err
		}
		sec = sectionFromContent(item, c.ID, next)
		return r.Sections.Create(ctx, sec)
	})
	if err != nil {
		return nil, err
	}
	s.Metrics.RecordContentIncluded(1)
	return sec, nil
}

// SkipContentItem moves a pending item to skipped.
func (s *ContentService) SkipContentItem(ctx context.Context, actor auth.Actor, itemID int) error {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return err
	}
	r := s.Store.Repos()
	item, err := r.Content.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SchoolID != schoolID {
		return appErrors.NewContentItemNotFound(itemID)
	}
	ok, err := r.Content.MarkSkipped(ctx, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.ErrContentItemResolved
	}
	return nil
}

func sectionFromContent(item *model.ContentItem, campaignID, sortOrder int) *model.Section {
	sec := &model.Section{
		CampaignID:  campaignID,
		Title:       item.Title,
		Body:        textToHTML(item.Description),
		LinkURL:     item.LinkURL,
		LinkText:    item.LinkText,
		Audience:    model.ParseAudience(string(item.Audience)),
		SectionType: model.SectionTypeCustom,
		SortOrder:   sortOrder,
		SubmittedBy: item.SubmittedBy,
	}
	if len(item.Images) > 0 {
		sec.ImageURL = item.Images[0].URL
		sec.ImageAlt = item.Images[0].Alt
	}
	return sec
}

// textToHTML turns a plain-text description into paragraphs. Blank lines split paragraphs,
// single newlines become <br>.
func textToHTML(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(strings.TrimSpace(lines[i]))
		}
		b.WriteString("<p>" + strings.Join(lines, "<br>") + "</p>")
	}
	return b.String()
}
