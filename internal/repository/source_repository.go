package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/db"
	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

// TimeWindow bounds a query on an event's start time. To is always inclusive.
type TimeWindow struct {
	From          time.Time
	To            time.Time
	FromExclusive bool
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if t.After(w.To) {
		return false
	}
	if w.FromExclusive {
		return t.After(w.From)
	}
	return !t.Before(w.From)
}

// SourceRepositoryInterface reads the school data the newsletter is assembled from.
// These rows are maintained elsewhere; the pipeline never writes them.
type SourceRepositoryInterface interface {
	GetSchool(ctx context.Context, id int) (*model.School, error)
	ListSchools(ctx context.Context) ([]model.School, error)
	ListEvents(ctx context.Context, schoolID int, w TimeWindow) ([]model.CalendarEvent, error)
	GetEvent(ctx context.Context, id int) (*model.CalendarEvent, error)
	ListApprovedMinutes(ctx context.Context, schoolID int, since time.Time, limit int) ([]model.MinutesRecord, error)
	ListActiveTemplates(ctx context.Context, schoolID int) ([]model.RecurringTemplate, error)
	ListApprovedBoard(ctx context.Context, schoolID int) ([]model.BoardMember, error)
}

type SourceRepository struct {
	DB db.Executor
}

func (r *SourceRepository) GetSchool(ctx context.Context, id int) (*model.School, error) {
	var s model.School
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, pta_list_email, families_list_email FROM schools WHERE id=$1`, id,
	).Scan(&s.ID, &s.Name, &s.PTAListEmail, &s.FamiliesListEmail)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSchoolNotFound(id)
		}
		return nil, errors.Wrap(err, "fetching school")
	}
	return &s, nil
}

func (r *SourceRepository) ListSchools(ctx context.Context) ([]model.School, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, pta_list_email, families_list_email FROM schools ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing schools")
	}
	defer rows.Close()

	schools := []model.School{}
	for rows.Next() {
		var s model.School
		if err := rows.Scan(&s.ID, &s.Name, &s.PTAListEmail, &s.FamiliesListEmail); err != nil {
			return nil, errors.Wrap(err, "scanning school")
		}
		schools = append(schools, s)
	}
	return schools, errors.Wrap(rows.Err(), "listing schools")
}

const eventColumns = `id, school_id, title, description, location, start_time, end_time, all_day`

func scanEvent(row interface{ Scan(...interface{}) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	if err := row.Scan(&e.ID, &e.SchoolID, &e.Title, &e.Description, &e.Location, &e.StartTime, &e.EndTime, &e.AllDay); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SourceRepository) ListEvents(ctx context.Context, schoolID int, w TimeWindow) ([]model.CalendarEvent, error) {
	lower := `start_time >= $2`
	if w.FromExclusive {
		lower = `start_time > $2`
	}
	query := `SELECT ` + eventColumns + ` FROM calendar_events WHERE school_id=$1 AND ` + lower +
		` AND start_time <= $3 ORDER BY start_time, id`

	rows, err := r.DB.QueryContext(ctx, query, schoolID, w.From, w.To)
	if err != nil {
		return nil, errors.Wrap(err, "listing events")
	}
	defer rows.Close()

	events := []model.CalendarEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning event")
		}
		events = append(events, *e)
	}
	return events, errors.Wrap(rows.Err(), "listing events")
}

func (r *SourceRepository) GetEvent(ctx context.Context, id int) (*model.CalendarEvent, error) {
	e, err := scanEvent(r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id=$1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNotFound("event", id)
		}
		return nil, errors.Wrap(err, "fetching event")
	}
	return e, nil
}

func (r *SourceRepository) ListApprovedMinutes(ctx context.Context, schoolID int, since time.Time, limit int) ([]model.MinutesRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, school_id, title, meeting_date, status, ai_summary, key_items, action_items
        FROM minutes_records
        WHERE school_id=$1 AND status='approved' AND meeting_date >= $2
        ORDER BY meeting_date DESC, id DESC
        LIMIT $3
    `, schoolID, since, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing minutes")
	}
	defer rows.Close()

	records := []model.MinutesRecord{}
	for rows.Next() {
		var m model.MinutesRecord
		if err := rows.Scan(&m.ID, &m.SchoolID, &m.Title, &m.MeetingDate, &m.Status, &m.AISummary,
			pq.Array(&m.KeyItems), pq.Array(&m.ActionItems)); err != nil {
			return nil, errors.Wrap(err, "scanning minutes")
		}
		records = append(records, m)
	}
	return records, errors.Wrap(rows.Err(), "listing minutes")
}

func (r *SourceRepository) ListActiveTemplates(ctx context.Context, schoolID int) ([]model.RecurringTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, school_id, key, title, body_template, link_url, link_text, image_url, image_alt,
               audience, default_sort_order, active
        FROM recurring_templates
        WHERE school_id=$1 AND active
        ORDER BY default_sort_order, id
    `, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "listing recurring templates")
	}
	defer rows.Close()

	templates := []model.RecurringTemplate{}
	for rows.Next() {
		var t model.RecurringTemplate
		if err := rows.Scan(&t.ID, &t.SchoolID, &t.Key, &t.Title, &t.BodyTemplate, &t.LinkURL, &t.LinkText,
			&t.ImageURL, &t.ImageAlt, &t.Audience, &t.DefaultSortOrder, &t.Active); err != nil {
			return nil, errors.Wrap(err, "scanning recurring template")
		}
		templates = append(templates, t)
	}
	return templates, errors.Wrap(rows.Err(), "listing recurring templates")
}

func (r *SourceRepository) ListApprovedBoard(ctx context.Context, schoolID int) ([]model.BoardMember, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, school_id, name, position, approved
        FROM board_members
        WHERE school_id=$1 AND approved
        ORDER BY id
    `, schoolID)
	if err != nil {
		return nil, errors.Wrap(err, "listing board members")
	}
	defer rows.Close()

	members := []model.BoardMember{}
	for rows.Next() {
		var m model.BoardMember
		if err := rows.Scan(&m.ID, &m.SchoolID, &m.Name, &m.Position, &m.Approved); err != nil {
			return nil, errors.Wrap(err, "scanning board member")
		}
		members = append(members, m)
	}
	return members, errors.Wrap(rows.Err(), "listing board members")
}

var _ SourceRepositoryInterface = (*SourceRepository)(nil)
