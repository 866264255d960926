package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/db"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

type SectionRepositoryInterface interface {
	ListByCampaign(ctx context.Context, campaignID int) ([]model.Section, error)
	GetByID(ctx context.Context, id int) (*model.Section, error)
	NextSortOrder(ctx context.Context, campaignID int) (int, error)
	Create(ctx context.Context, s *model.Section) error
	Update(ctx context.Context, s *model.Section) error
	Delete(ctx context.Context, id int) error
	DeleteByCampaign(ctx context.Context, campaignID int) error
	SetSortOrders(ctx context.Context, campaignID int, orderedIDs []int) error
}

type SectionRepository struct {
	DB db.Executor
}

const sectionColumns = `id, campaign_id, title, body, link_url, link_text, image_url, image_alt, image_link,
        audience, section_type, recurring_key, sort_order, submitted_by, created_at, updated_at`

func scanSection(row interface{ Scan(...interface{}) error }) (*model.Section, error) {
	var s model.Section
	var submittedBy sql.NullInt64
	err := row.Scan(&s.ID, &s.CampaignID, &s.Title, &s.Body, &s.LinkURL, &s.LinkText, &s.ImageURL, &s.ImageAlt, &s.ImageLink,
		&s.Audience, &s.SectionType, &s.RecurringKey, &s.SortOrder, &submittedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if submittedBy.Valid {
		v := int(submittedBy.Int64)
		s.SubmittedBy = &v
	}
	return &s, nil
}

func (r *SectionRepository) ListByCampaign(ctx context.Context, campaignID int) ([]model.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM campaign_sections WHERE campaign_id=$1 ORDER BY sort_order, id`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, "listing sections")
	}
	defer rows.Close()

	sections := []model.Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning section")
		}
		sections = append(sections, *s)
	}
	return sections, errors.Wrap(rows.Err(), "listing sections")
}

func (r *SectionRepository) GetByID(ctx context.Context, id int) (*model.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM campaign_sections WHERE id=$1`
	s, err := scanSection(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSectionNotFound(id)
		}
		return nil, errors.Wrap(err, "fetching section")
	}
	return s, nil
}

// NextSortOrder returns max(sort_order)+1, or 0 for a campaign with no sections.
func (r *SectionRepository) NextSortOrder(ctx context.Context, campaignID int) (int, error) {
	var next int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM campaign_sections WHERE campaign_id=$1`, campaignID,
	).Scan(&next)
	return next, errors.Wrap(err, "computing next sort order")
}

func (r *SectionRepository) Create(ctx context.Context, s *model.Section) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
        INSERT INTO campaign_sections
        (campaign_id, title, body, link_url, link_text, image_url, image_alt, image_link,
         audience, section_type, recurring_key, sort_order, submitted_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		s.CampaignID, s.Title, s.Body, s.LinkURL, s.LinkText, s.ImageURL, s.ImageAlt, s.ImageLink,
		s.Audience, s.SectionType, s.RecurringKey, s.SortOrder, s.SubmittedBy, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	return errors.Wrap(err, "inserting section")
}

func (r *SectionRepository) Update(ctx context.Context, s *model.Section) error {
	s.UpdatedAt = time.Now()
	query := `
        UPDATE campaign_sections
        SET title=$1, body=$2, link_url=$3, link_text=$4, image_url=$5, image_alt=$6, image_link=$7,
            audience=$8, section_type=$9, recurring_key=$10, updated_at=$11
        WHERE id=$12
    `
	_, err := r.DB.ExecContext(ctx, query,
		s.Title, s.Body, s.LinkURL, s.LinkText, s.ImageURL, s.ImageAlt, s.ImageLink,
		s.Audience, s.SectionType, s.RecurringKey, s.UpdatedAt, s.ID)
	return errors.Wrap(err, "updating section")
}

func (r *SectionRepository) Delete(ctx context.Context, id int) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_sections WHERE id=$1`, id)
	return errors.Wrap(err, "deleting section")
}

func (r *SectionRepository) DeleteByCampaign(ctx context.Context, campaignID int) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM campaign_sections WHERE campaign_id=$1`, campaignID)
	return errors.Wrap(err, "deleting campaign sections")
}

// SetSortOrders assigns each id its position in orderedIDs.
func (r *SectionRepository) SetSortOrders(ctx context.Context, campaignID int, orderedIDs []int) error {
	query := `UPDATE campaign_sections SET sort_order=$1, updated_at=NOW() WHERE id=$2 AND campaign_id=$3`
	for i, id := range orderedIDs {
		if _, err := r.DB.ExecContext(ctx, query, i, id, campaignID); err != nil {
			return errors.Wrapf(err, "setting sort order of section %d", id)
		}
	}
	return nil
}

var _ SectionRepositoryInterface = (*SectionRepository)(nil)
