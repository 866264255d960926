package model

import "time"

type School struct {
	ID                int    `db:"id" json:"id"`
	Name              string `db:"name" json:"name"`
	PTAListEmail      string `db:"pta_list_email" json:"pta_list_email,omitempty"`
	FamiliesListEmail string `db:"families_list_email" json:"families_list_email,omitempty"`
}

type BoardMember struct {
	ID       int    `db:"id" json:"id"`
	SchoolID int    `db:"school_id" json:"school_id"`
	Name     string `db:"name" json:"name"`
	Position string `db:"position" json:"position"`
	Approved bool   `db:"approved" json:"approved"`
}

type CalendarEvent struct {
	ID          int        `db:"id" json:"id"`
	SchoolID    int        `db:"school_id" json:"school_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description,omitempty"`
	Location    string     `db:"location" json:"location,omitempty"`
	StartTime   time.Time  `db:"start_time" json:"start_time"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	AllDay      bool       `db:"all_day" json:"all_day"`
}

type MinutesStatus string

const (
	MinutesStatusDraft    MinutesStatus = "draft"
	MinutesStatusApproved MinutesStatus = "approved"
)

// MinutesRecord is an imported PTA meeting minutes document with its AI-derived digest.
type MinutesRecord struct {
	ID          int           `db:"id" json:"id"`
	SchoolID    int           `db:"school_id" json:"school_id"`
	Title       string        `db:"title" json:"title"`
	MeetingDate time.Time     `db:"meeting_date" json:"meeting_date"`
	Status      MinutesStatus `db:"status" json:"status"`
	AISummary   string        `db:"ai_summary" json:"ai_summary,omitempty"`
	KeyItems    []string      `db:"key_items" json:"key_items,omitempty"`
	ActionItems []string      `db:"action_items" json:"action_items,omitempty"`
}

// RecurringTemplate is a reusable school-level block referenced by Key.
type RecurringTemplate struct {
	ID               int      `db:"id" json:"id"`
	SchoolID         int      `db:"school_id" json:"school_id"`
	Key              string   `db:"key" json:"key"`
	Title            string   `db:"title" json:"title"`
	BodyTemplate     string   `db:"body_template" json:"body_template"`
	LinkURL          string   `db:"link_url" json:"link_url,omitempty"`
	LinkText         string   `db:"link_text" json:"link_text,omitempty"`
	ImageURL         string   `db:"image_url" json:"image_url,omitempty"`
	ImageAlt         string   `db:"image_alt" json:"image_alt,omitempty"`
	Audience         Audience `db:"audience" json:"audience"`
	DefaultSortOrder int      `db:"default_sort_order" json:"default_sort_order"`
	Active           bool     `db:"active" json:"active"`
}
