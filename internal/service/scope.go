package service

import (
	"context"

	"github.com/unclebandit/pta-newsletter/internal/auth"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

// campaignFor loads a campaign the actor's school owns. Campaigns of other schools are
// reported as not found.
func campaignFor(ctx context.Context, r repository.Repos, actor auth.Actor, id int) (*model.Campaign, error) {
	schoolID, err := actor.RequireSchool()
	if err != nil {
		return nil, err
	}
	c, err := r.Campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.SchoolID != schoolID {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return c, nil
}

// editableCampaign is campaignFor plus the sent freeze.
func editableCampaign(ctx context.Context, r repository.Repos, actor auth.Actor, id int) (*model.Campaign, error) {
	c, err := campaignFor(ctx, r, actor, id)
	if err != nil {
		return nil, err
	}
	if c.IsSent() {
		return nil, appErrors.ErrCampaignSent
	}
	return c, nil
}

// sectionFor loads a section and its campaign, both scoped to the actor's school.
func sectionFor(ctx context.Context, r repository.Repos, actor auth.Actor, id int) (*model.Section, *model.Campaign, error) {
	s, err := r.Sections.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	c, err := campaignFor(ctx, r, actor, s.CampaignID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			return nil, nil, appErrors.NewSectionNotFound(id)
		}
		return nil, nil, err
	}
	return s, c, nil
}

// renumber rewrites sort orders to 0..n-1 keeping the current order.
func renumber(ctx context.Context, r repository.Repos, campaignID int) ([]model.Section, error) {
	sections, err := r.Sections.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(sections))
	for i := range sections {
		ids[i] = sections[i].ID
		sections[i].SortOrder = i
	}
	if err := r.Sections.SetSortOrders(ctx, campaignID, ids); err != nil {
		return nil, err
	}
	return sections, nil
}
