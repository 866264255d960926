package model

import "time"

type Audience string

const (
	AudienceAll     Audience = "all"
	AudiencePTAOnly Audience = "pta_only"
)

// ParseAudience maps unknown values to AudienceAll.
func ParseAudience(s string) Audience {
	if Audience(s) == AudiencePTAOnly {
		return AudiencePTAOnly
	}
	return AudienceAll
}

type SectionType string

const (
	SectionTypeCalendarSummary SectionType = "calendar_summary"
	SectionTypeCustom          SectionType = "custom"
	SectionTypeRecurring       SectionType = "recurring"
)

// ParseSectionType maps unknown values to SectionTypeCustom.
func ParseSectionType(s string) SectionType {
	switch t := SectionType(s); t {
	case SectionTypeCalendarSummary, SectionTypeRecurring:
		return t
	}
	return SectionTypeCustom
}

// Section is one ordered content block of a campaign. Body is an HTML fragment.
type Section struct {
	ID           int         `db:"id" json:"id"`
	CampaignID   int         `db:"campaign_id" json:"campaign_id"`
	Title        string      `db:"title" json:"title"`
	Body         string      `db:"body" json:"body"`
	LinkURL      string      `db:"link_url" json:"link_url,omitempty"`
	LinkText     string      `db:"link_text" json:"link_text,omitempty"`
	ImageURL     string      `db:"image_url" json:"image_url,omitempty"`
	ImageAlt     string      `db:"image_alt" json:"image_alt,omitempty"`
	ImageLink    string      `db:"image_link" json:"image_link,omitempty"`
	Audience     Audience    `db:"audience" json:"audience"`
	SectionType  SectionType `db:"section_type" json:"section_type"`
	RecurringKey string      `db:"recurring_key" json:"recurring_key,omitempty"`
	SortOrder    int         `db:"sort_order" json:"sort_order"`
	SubmittedBy  *int        `db:"submitted_by" json:"submitted_by,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// SectionPatch carries the fields of a partial section update. Nil means unchanged.
type SectionPatch struct {
	Title        *string      `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Body         *string      `json:"body,omitempty"`
	LinkURL      *string      `json:"link_url,omitempty" validate:"omitempty,url_or_empty"`
	LinkText     *string      `json:"link_text,omitempty" validate:"omitempty,max=120"`
	ImageURL     *string      `json:"image_url,omitempty" validate:"omitempty,url_or_empty"`
	ImageAlt     *string      `json:"image_alt,omitempty" validate:"omitempty,max=200"`
	ImageLink    *string      `json:"image_link,omitempty" validate:"omitempty,url_or_empty"`
	Audience     *Audience    `json:"audience,omitempty" validate:"omitempty,oneof=all pta_only"`
	SectionType  *SectionType `json:"section_type,omitempty" validate:"omitempty,oneof=calendar_summary custom recurring"`
	RecurringKey *string      `json:"recurring_key,omitempty"`
}

// Apply copies the non-nil fields of p onto s.
func (p SectionPatch) Apply(s *Section) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Body != nil {
		s.Body = *p.Body
	}
	if p.LinkURL != nil {
		s.LinkURL = *p.LinkURL
	}
	if p.LinkText != nil {
		s.LinkText = *p.LinkText
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
	if p.ImageAlt != nil {
		s.ImageAlt = *p.ImageAlt
	}
	if p.ImageLink != nil {
		s.ImageLink = *p.ImageLink
	}
	if p.Audience != nil {
		s.Audience = *p.Audience
	}
	if p.SectionType != nil {
		s.SectionType = *p.SectionType
	}
	if p.RecurringKey != nil {
		s.RecurringKey = *p.RecurringKey
	}
}
