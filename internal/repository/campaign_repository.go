package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/db"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	GetBySchoolAndWeek(ctx context.Context, schoolID int, weekStart time.Time) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, schoolID, offset, limit int, status string) ([]*model.Campaign, int, error)
	Update(ctx context.Context, c *model.Campaign) error
	UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error
	SaveCompiled(ctx context.Context, campaignID int, ptaHTML, schoolHTML string) error
	MarkSent(ctx context.Context, campaignID, sentBy int, sentAt time.Time) error
}

type CampaignRepository struct {
	DB db.Executor
}

const campaignColumns = `id, school_id, title, week_start, week_end, status, pta_html, school_html,
        sent_at, sent_by, created_by, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (*model.Campaign, error) {
	var c model.Campaign
	var sentBy sql.NullInt64
	err := row.Scan(&c.ID, &c.SchoolID, &c.Title, &c.WeekStart, &c.WeekEnd, &c.Status, &c.PTAHTML, &c.SchoolHTML,
		&c.SentAt, &sentBy, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sentBy.Valid {
		v := int(sentBy.Int64)
		c.SentBy = &v
	}
	return &c, nil
}

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	query := `
        INSERT INTO campaigns (school_id, title, week_start, week_end, status, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query, c.SchoolID, c.Title, c.WeekStart, c.WeekEnd, c.Status, c.CreatedBy, c.CreatedAt).Scan(&c.ID)
	if db.IsUniqueViolation(err) {
		return appErrors.ErrCampaignExists
	}
	return errors.Wrap(err, "inserting campaign")
}

func (r *CampaignRepository) Update(ctx context.Context, c *model.Campaign) error {
	query := `
        UPDATE campaigns
        SET title=$1, week_start=$2, week_end=$3, status=$4, updated_at=NOW()
        WHERE id=$5
    `
	_, err := r.DB.ExecContext(ctx, query, c.Title, c.WeekStart, c.WeekEnd, c.Status, c.ID)
	if db.IsUniqueViolation(err) {
		return appErrors.ErrCampaignExists
	}
	return errors.Wrap(err, "updating campaign")
}

func (r *CampaignRepository) UpdateStatus(ctx context.Context, campaignID int, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status=$1, updated_at=$2 WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, status, time.Now(), campaignID)
	return errors.Wrap(err, "updating campaign status")
}

func (r *CampaignRepository) SaveCompiled(ctx context.Context, campaignID int, ptaHTML, schoolHTML string) error {
	query := `UPDATE campaigns SET pta_html=$1, school_html=$2, updated_at=NOW() WHERE id=$3`
	_, err := r.DB.ExecContext(ctx, query, ptaHTML, schoolHTML, campaignID)
	return errors.Wrap(err, "saving compiled html")
}

// MarkSent is guarded on status so two concurrent sends stamp the campaign once.
func (r *CampaignRepository) MarkSent(ctx context.Context, campaignID, sentBy int, sentAt time.Time) error {
	query := `
        UPDATE campaigns
        SET status='sent', sent_at=$1, sent_by=$2, updated_at=$1
        WHERE id=$3 AND status <> 'sent'
    `
	res, err := r.DB.ExecContext(ctx, query, sentAt, sentBy, campaignID)
	if err != nil {
		return errors.Wrap(err, "marking campaign sent")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "marking campaign sent")
	}
	if n == 0 {
		return appErrors.ErrCampaignSent
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, errors.Wrap(err, "fetching campaign")
	}
	return c, nil
}

// GetBySchoolAndWeek returns nil, nil when the school has no campaign for that week.
func (r *CampaignRepository) GetBySchoolAndWeek(ctx context.Context, schoolID int, weekStart time.Time) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE school_id=$1 AND week_start=$2 ORDER BY id LIMIT 1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, schoolID, weekStart))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "fetching campaign by week")
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, schoolID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	where := ` WHERE school_id=$1`
	args := []interface{}{schoolID}
	argPos := 2

	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY week_start DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)

	rows, err := r.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "listing campaigns")
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scanning campaign")
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "listing campaigns")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "counting campaigns")
	}

	return campaigns, total, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
