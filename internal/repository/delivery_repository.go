package repository

import (
	"context"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/db"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

type DeliveryRepositoryInterface interface {
	// Upsert returns the existing row for (campaign, audience) or creates a pending one.
	Upsert(ctx context.Context, d *model.Delivery) error
	UpdateStatus(ctx context.Context, id int, status model.DeliveryStatus, lastError string) error
	ListByCampaign(ctx context.Context, campaignID int) ([]model.Delivery, error)
}

type DeliveryRepository struct {
	DB db.Executor
}

func (r *DeliveryRepository) Upsert(ctx context.Context, d *model.Delivery) error {
	if d.Status == "" {
		d.Status = model.DeliveryPending
	}
	query := `
        INSERT INTO campaign_deliveries (campaign_id, audience, recipient, status)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (campaign_id, audience) DO UPDATE SET recipient = EXCLUDED.recipient
        RETURNING id, status, last_error, retry_count, created_at, updated_at
    `
	err := r.DB.QueryRowContext(ctx, query, d.CampaignID, d.Audience, d.Recipient, d.Status).
		Scan(&d.ID, &d.Status, &d.LastError, &d.RetryCount, &d.CreatedAt, &d.UpdatedAt)
	return errors.Wrap(err, "upserting delivery")
}

// UpdateStatus bumps retry_count on every failed attempt.
func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id int, status model.DeliveryStatus, lastError string) error {
	query := `
        UPDATE campaign_deliveries
        SET status=$1, last_error=$2,
            retry_count = retry_count + CASE WHEN $1 = 'failed' THEN 1 ELSE 0 END,
            updated_at=NOW()
        WHERE id=$3
    `
	_, err := r.DB.ExecContext(ctx, query, status, lastError, id)
	return errors.Wrap(err, "updating delivery")
}

func (r *DeliveryRepository) ListByCampaign(ctx context.Context, campaignID int) ([]model.Delivery, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, campaign_id, audience, recipient, status, last_error, retry_count, created_at, updated_at
        FROM campaign_deliveries WHERE campaign_id=$1 ORDER BY id
    `, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, "listing deliveries")
	}
	defer rows.Close()

	deliveries := []model.Delivery{}
	for rows.Next() {
		var d model.Delivery
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.Audience, &d.Recipient, &d.Status, &d.LastError,
			&d.RetryCount, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning delivery")
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, errors.Wrap(rows.Err(), "listing deliveries")
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
