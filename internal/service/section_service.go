package service

import (
	"context"
	"strings"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
	"github.com/unclebandit/pta-newsletter/internal/validation"
)

// NewSection is the input for adding a section by hand or promoting a suggestion.
type NewSection struct {
	Title        string `json:"title" validate:"required,max=200"`
	Body         string `json:"body"`
	LinkURL      string `json:"link_url" validate:"omitempty,url"`
	LinkText     string `json:"link_text" validate:"omitempty,max=120"`
	ImageURL     string `json:"image_url" validate:"omitempty,url"`
	ImageAlt     string `json:"image_alt" validate:"omitempty,max=200"`
	ImageLink    string `json:"image_link" validate:"omitempty,url"`
	Audience     string `json:"audience" validate:"omitempty,oneof=all pta_only"`
	SectionType  string `json:"section_type" validate:"omitempty,oneof=calendar_summary custom recurring"`
	RecurringKey string `json:"recurring_key"`
}

type SectionService struct {
	Store    repository.Store
	Validate *validation.Validator
}

func NewSectionService(store repository.Store, v *validation.Validator) *SectionService {
	return &SectionService{Store: store, Validate: v}
}

func (s *SectionService) ListSections(ctx context.Context, actor auth.Actor, campaignID int) ([]model.Section, error) {
	r := s.Store.Repos()
	if _, err := campaignFor(ctx, r, actor, campaignID); err != nil {
		return nil, err
	}
	return r.Sections.ListByCampaign(ctx, campaignID)
}

// AddSection appends a section at the end of the campaign.
func (s *SectionService) AddSection(ctx context.Context, actor auth.Actor, campaignID int, in NewSection) (*model.Section, error) {
	if err := s.Validate.Struct(in); err != nil {
		return nil, err
	}

	sec := &model.Section{
		CampaignID:   campaignID,
		Title:        strings.TrimSpace(in.Title),
		Body:         in.Body,
		LinkURL:      in.LinkURL,
		LinkText:     in.LinkText,
		ImageURL:     in.ImageURL,
		ImageAlt:     in.ImageAlt,
		ImageLink:    in.ImageLink,
		Audience:     model.ParseAudience(in.Audience),
		SectionType:  model.ParseSectionType(in.SectionType),
		RecurringKey: in.RecurringKey,
	}
	if actor.UserID != 0 {
		uid := actor.UserID
		sec.SubmittedBy = &uid
	}

	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := editableCampaign(ctx, r, actor, campaignID); err != nil {
			return err
		}
		next, err := r.Sections.NextSortOrder(ctx, campaignID)
		if err != nil {
			return err
		}
		sec.SortOrder = next
		return r.Sections.Create(ctx, sec)
	})
	if err != nil {
		return nil, err
	}
	return sec, nil
}

// UpdateSection applies a partial patch. Sort order is not patchable; use ReorderSections.
func (s *SectionService) UpdateSection(ctx context.Context, actor auth.Actor, sectionID int, patch model.SectionPatch) (*model.Section, error) {
	if err := s.Validate.Struct(patch); err != nil {
		return nil, err
	}

	var out *model.Section
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		sec, c, err := sectionFor(ctx, r, actor, sectionID)
		if err != nil {
			return err
		}
		if c.IsSent() {
			return appErrors.ErrCampaignSent
		}
		patch.Apply(sec)
		if err := r.Sections.Update(ctx, sec); err != nil {
			return err
		}
		out = sec
		return nil
	})
	return out, err
}

// DeleteSection removes a section and closes the gap in the sort order.
func (s *SectionService) DeleteSection(ctx context.Context, actor auth.Actor, sectionID int) error {
	return s.Store.WithinTx(ctx, func(r repository.Repos) error {
		sec, c, err := sectionFor(ctx, r, actor, sectionID)
		if err != nil {
			return err
		}
		if c.IsSent() {
			return appErrors.ErrCampaignSent
		}
		if err := r.Sections.Delete(ctx, sec.ID); err != nil {
			return err
		}
		_, err = renumber(ctx, r, c.ID)
		return err
	})
}

// ReorderSections sets sort order to each id's position. ids must name every section of the
// campaign exactly once.
func (s *SectionService) ReorderSections(ctx context.Context, actor auth.Actor, campaignID int, ids []int) ([]model.Section, error) {
	var out []model.Section
	err := s.Store.WithinTx(ctx, func(r repository.Repos) error {
		if _, err := editableCampaign(ctx, r, actor, campaignID); err != nil {
			return err
		}
		current, err := r.Sections.ListByCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if !isPermutation(current, ids) {
			return appErrors.NewValidationError(nil, appErrors.FieldError{
				Field: "section_ids",
				Error: "must list every section of the campaign exactly once",
			})
		}
		if err := r.Sections.SetSortOrders(ctx, campaignID, ids); err != nil {
			return err
		}
		out, err = r.Sections.ListByCampaign(ctx, campaignID)
		return err
	})
	return out, err
}

func isPermutation(sections []model.Section, ids []int) bool {
	if len(sections) != len(ids) {
		return false
	}
	want := make(map[int]bool, len(sections))
	for _, s := range sections {
		want[s.ID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return len(want) == 0
}
