// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	CampaignStatusDraft  CampaignStatus = "draft"
	CampaignStatusReview CampaignStatus = "review"
	CampaignStatusSent   CampaignStatus = "sent"
)

// Valid reports whether s is one of the known lifecycle states.
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusReview, CampaignStatusSent:
		return true
	}
	return false
}

// Campaign is one weekly newsletter for a school. WeekStart and WeekEnd are calendar
// dates (midnight UTC).
type Campaign struct {
	ID         int            `db:"id" json:"id"`
	SchoolID   int            `db:"school_id" json:"school_id"`
	Title      string         `db:"title" json:"title"`
	WeekStart  time.Time      `db:"week_start" json:"week_start"`
	WeekEnd    time.Time      `db:"week_end" json:"week_end"`
	Status     CampaignStatus `db:"status" json:"status"`
	PTAHTML    string         `db:"pta_html" json:"pta_html"`
	SchoolHTML string         `db:"school_html" json:"school_html"`
	SentAt     *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	SentBy     *int           `db:"sent_by" json:"sent_by,omitempty"`
	CreatedBy  int            `db:"created_by" json:"created_by"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  *time.Time     `db:"updated_at" json:"updated_at,omitempty"`
}

func (c *Campaign) IsSent() bool {
	return c.Status == CampaignStatusSent
}
