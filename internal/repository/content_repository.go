package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/db"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

type ContentRepositoryInterface interface {
	ListPending(ctx context.Context, schoolID int) ([]model.ContentItem, error)
	GetByID(ctx context.Context, id int) (*model.ContentItem, error)
	Create(ctx context.Context, item *model.ContentItem) error
	// MarkIncluded and MarkSkipped only move pending items and report whether a row changed.
	MarkIncluded(ctx context.Context, id, campaignID int) (bool, error)
	MarkSkipped(ctx context.Context, id int) (bool, error)
	MarkAllIncluded(ctx context.Context, schoolID, campaignID int, ids []int) ([]int, error)
}

type ContentRepository struct {
	DB db.Executor
}

const contentColumns = `id, school_id, title, description, link_url, link_text, audience, target_date,
        status, included_in_campaign_id, submitted_by, created_at`

func scanContentItem(row interface{ Scan(...interface{}) error }) (*model.ContentItem, error) {
	var item model.ContentItem
	var included, submittedBy sql.NullInt64
	err := row.Scan(&item.ID, &item.SchoolID, &item.Title, &item.Description, &item.LinkURL, &item.LinkText,
		&item.Audience, &item.TargetDate, &item.Status, &included, &submittedBy, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	if included.Valid {
		v := int(included.Int64)
		item.IncludedInCampaignID = &v
	}
	if submittedBy.Valid {
		v := int(submittedBy.Int64)
		item.SubmittedBy = &v
	}
	return &item, nil
}

func (r *ContentRepository) ListPending(ctx context.Context, schoolID int) ([]model.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE school_id=$1 AND status='pending' ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "listing pending content")
	}
	defer rows.Close()

	items := []model.ContentItem{}
	ids := []int{}
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning content item")
		}
		items = append(items, *item)
		ids = append(ids, item.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "listing pending content")
	}

	images, err := r.imagesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Images = images[items[i].ID]
	}
	return items, nil
}

func (r *ContentRepository) GetByID(ctx context.Context, id int) (*model.ContentItem, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id=$1`
	item, err := scanContentItem(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewContentItemNotFound(id)
		}
		return nil, errors.Wrap(err, "fetching content item")
	}
	images, err := r.imagesFor(ctx, []int{id})
	if err != nil {
		return nil, err
	}
	item.Images = images[id]
	return item, nil
}

func (r *ContentRepository) imagesFor(ctx context.Context, ids []int) (map[int][]model.ContentImage, error) {
	out := map[int][]model.ContentImage{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, content_item_id, url, alt, sort_order
        FROM content_item_images
        WHERE content_item_id = ANY($1)
        ORDER BY content_item_id, sort_order, id
    `, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "listing content images")
	}
	defer rows.Close()

	for rows.Next() {
		var img model.ContentImage
		if err := rows.Scan(&img.ID, &img.ContentItemID, &img.URL, &img.Alt, &img.SortOrder); err != nil {
			return nil, errors.Wrap(err, "scanning content image")
		}
		out[img.ContentItemID] = append(out[img.ContentItemID], img)
	}
	return out, errors.Wrap(rows.Err(), "listing content images")
}

func (r *ContentRepository) Create(ctx context.Context, item *model.ContentItem) error {
	item.CreatedAt = time.Now()
	if item.Status == "" {
		item.Status = model.ContentStatusPending
	}
	query := `
        INSERT INTO content_items
        (school_id, title, description, link_url, link_text, audience, target_date, status, submitted_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id
    `
	err := r.DB.QueryRowContext(ctx, query,
		item.SchoolID, item.Title, item.Description, item.LinkURL, item.LinkText, item.Audience,
		item.TargetDate, item.Status, item.SubmittedBy, item.CreatedAt,
	).Scan(&item.ID)
	if err != nil {
		return errors.Wrap(err, "inserting content item")
	}

	for i := range item.Images {
		img := &item.Images[i]
		img.ContentItemID = item.ID
		img.SortOrder = i
		err := r.DB.QueryRowContext(ctx,
			`INSERT INTO content_item_images (content_item_id, url, alt, sort_order) VALUES ($1, $2, $3, $4) RETURNING id`,
			img.ContentItemID, img.URL, img.Alt, img.SortOrder,
		).Scan(&img.ID)
		if err != nil {
			return errors.Wrap(err, "inserting content image")
		}
	}
	return nil
}

func (r *ContentRepository) MarkIncluded(ctx context.Context, id, campaignID int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE content_items SET status='included', included_in_campaign_id=$1 WHERE id=$2 AND status='pending'`,
		campaignID, id)
	return affected(res, err, "including content item")
}

func (r *ContentRepository) MarkSkipped(ctx context.Context, id int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE content_items SET status='skipped' WHERE id=$1 AND status='pending'`, id)
	return affected(res, err, "skipping content item")
}

// MarkAllIncluded links every still-pending item in ids to the campaign in one statement
// and returns the ids it changed, in ascending order.
func (r *ContentRepository) MarkAllIncluded(ctx context.Context, schoolID, campaignID int, ids []int) ([]int, error) {
	changed := []int{}
	if len(ids) == 0 {
		return changed, nil
	}
	rows, err := r.DB.QueryContext(ctx, `
        UPDATE content_items
        SET status='included', included_in_campaign_id=$1
        WHERE school_id=$2 AND status='pending' AND id = ANY($3)
        RETURNING id
    `, campaignID, schoolID, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "bulk including content items")
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning included content id")
		}
		changed = append(changed, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "bulk including content items")
	}
	sort.Ints(changed)
	return changed, nil
}

func affected(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, op)
	}
	return n > 0, nil
}

var _ ContentRepositoryInterface = (*ContentRepository)(nil)
