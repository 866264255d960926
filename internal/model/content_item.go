package model

import "time"

type ContentStatus string

const (
	ContentStatusPending  ContentStatus = "pending"
	ContentStatusIncluded ContentStatus = "included"
	ContentStatusSkipped  ContentStatus = "skipped"
)

// ContentItem is a submission waiting in the inbox for an upcoming newsletter.
type ContentItem struct {
	ID                   int            `db:"id" json:"id"`
	SchoolID             int            `db:"school_id" json:"school_id"`
	Title                string         `db:"title" json:"title"`
	Description          string         `db:"description" json:"description"`
	LinkURL              string         `db:"link_url" json:"link_url,omitempty"`
	LinkText             string         `db:"link_text" json:"link_text,omitempty"`
	Audience             Audience       `db:"audience" json:"audience"`
	TargetDate           *time.Time     `db:"target_date" json:"target_date,omitempty"`
	Status               ContentStatus  `db:"status" json:"status"`
	IncludedInCampaignID *int           `db:"included_in_campaign_id" json:"included_in_campaign_id,omitempty"`
	SubmittedBy          *int           `db:"submitted_by" json:"submitted_by,omitempty"`
	Images               []ContentImage `json:"images,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
}

type ContentImage struct {
	ID            int    `db:"id" json:"id"`
	ContentItemID int    `db:"content_item_id" json:"content_item_id"`
	URL           string `db:"url" json:"url"`
	Alt           string `db:"alt" json:"alt,omitempty"`
	SortOrder     int    `db:"sort_order" json:"sort_order"`
}
