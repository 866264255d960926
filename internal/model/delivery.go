package model

import "time"

// DeliveryJob is the queue payload published when a campaign is sent.
type DeliveryJob struct {
	CampaignID int       `json:"campaign_id"`
	SchoolID   int       `json:"school_id"`
	SentBy     int       `json:"sent_by"`
	SentAt     time.Time `json:"sent_at"`
}

type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Delivery tracks sending one audience rendering of a campaign to one list address.
type Delivery struct {
	ID         int            `db:"id" json:"id"`
	CampaignID int            `db:"campaign_id" json:"campaign_id"`
	Audience   Audience       `db:"audience" json:"audience"`
	Recipient  string         `db:"recipient" json:"recipient"`
	Status     DeliveryStatus `db:"status" json:"status"`
	LastError  string         `db:"last_error" json:"last_error,omitempty"`
	RetryCount int            `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}
