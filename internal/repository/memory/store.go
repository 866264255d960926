// Package memory is a map-backed Store used by tests and local runs without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

type tables struct {
	schools    map[int]model.School
	board      map[int]model.BoardMember
	events     map[int]model.CalendarEvent
	minutes    map[int]model.MinutesRecord
	templates  map[int]model.RecurringTemplate
	campaigns  map[int]model.Campaign
	sections   map[int]model.Section
	content    map[int]model.ContentItem
	deliveries map[int]model.Delivery
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *tables) clone() *tables {
	return &tables{
		schools:    cloneMap(t.schools),
		board:      cloneMap(t.board),
		events:     cloneMap(t.events),
		minutes:    cloneMap(t.minutes),
		templates:  cloneMap(t.templates),
		campaigns:  cloneMap(t.campaigns),
		sections:   cloneMap(t.sections),
		content:    cloneMap(t.content),
		deliveries: cloneMap(t.deliveries),
	}
}

// Store keeps every table in maps guarded by one mutex. Transactions are serialized and
// roll back by restoring a snapshot.
type Store struct {
	mu     sync.RWMutex
	txMu   sync.Mutex
	db     *tables
	pk     int
	failOn map[string]error
}

func NewStore() *Store {
	return &Store{
		db: &tables{
			schools:    map[int]model.School{},
			board:      map[int]model.BoardMember{},
			events:     map[int]model.CalendarEvent{},
			minutes:    map[int]model.MinutesRecord{},
			templates:  map[int]model.RecurringTemplate{},
			campaigns:  map[int]model.Campaign{},
			sections:   map[int]model.Section{},
			content:    map[int]model.ContentItem{},
			deliveries: map[int]model.Delivery{},
		},
		failOn: map[string]error{},
	}
}

// FailOn makes the named operation (e.g. "content.MarkAllIncluded") return err until cleared
// with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// injected must be called with mu held.
func (s *Store) injected(op string) error {
	return s.failOn[op]
}

func (s *Store) nextID() int {
	s.pk++
	return s.pk
}

func (s *Store) Repos() repository.Repos {
	return repository.Repos{
		Campaigns:  &campaignRepository{s},
		Sections:   &sectionRepository{s},
		Content:    &contentRepository{s},
		Sources:    &sourceRepository{s},
		Deliveries: &deliveryRepository{s},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repository.Repos) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.db.clone()
	pk := s.pk
	s.mu.RUnlock()

	if err := fn(s.Repos()); err != nil {
		s.mu.Lock()
		s.db = snapshot
		s.pk = pk
		s.mu.Unlock()
		return err
	}
	return ctx.Err()
}

// ====================== Seeding ======================

func (s *Store) AddSchool(school model.School) model.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	if school.ID == 0 {
		school.ID = s.nextID()
	}
	s.db.schools[school.ID] = school
	return school
}

func (s *Store) AddBoardMember(m model.BoardMember) model.BoardMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID()
	s.db.board[m.ID] = m
	return m
}

func (s *Store) AddEvent(e model.CalendarEvent) model.CalendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	s.db.events[e.ID] = e
	return e
}

func (s *Store) AddMinutes(m model.MinutesRecord) model.MinutesRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.nextID()
	s.db.minutes[m.ID] = m
	return m
}

func (s *Store) AddTemplate(t model.RecurringTemplate) model.RecurringTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID()
	s.db.templates[t.ID] = t
	return t
}

// ====================== Campaigns ======================

type campaignRepository struct{ s *Store }

func (r *campaignRepository) Create(_ context.Context, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("campaigns.Create"); err != nil {
		return err
	}
	if r.weekTaken(c.SchoolID, c.WeekStart, 0) {
		return appErrors.ErrCampaignExists
	}
	c.ID = r.s.nextID()
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.CampaignStatusDraft
	}
	r.s.db.campaigns[c.ID] = *c
	return nil
}

// weekTaken mirrors the (school_id, week_start) unique constraint. mu must be held.
func (r *campaignRepository) weekTaken(schoolID int, weekStart time.Time, except int) bool {
	for id, c := range r.s.db.campaigns {
		if id != except && c.SchoolID == schoolID && c.WeekStart.Equal(weekStart) {
			return true
		}
	}
	return false
}

func (r *campaignRepository) GetByID(_ context.Context, id int) (*model.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.db.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	return &c, nil
}

func (r *campaignRepository) GetBySchoolAndWeek(_ context.Context, schoolID int, weekStart time.Time) (*model.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var found *model.Campaign
	for _, c := range r.s.db.campaigns {
		if c.SchoolID == schoolID && c.WeekStart.Equal(weekStart) && (found == nil || c.ID < found.ID) {
			c := c
			found = &c
		}
	}
	return found, nil
}

func (r *campaignRepository) ListCampaigns(_ context.Context, schoolID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := []*model.Campaign{}
	for _, c := range r.s.db.campaigns {
		if c.SchoolID != schoolID || (status != "" && string(c.Status) != status) {
			continue
		}
		c := c
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].WeekStart.Equal(all[j].WeekStart) {
			return all[i].WeekStart.After(all[j].WeekStart)
		}
		return all[i].ID > all[j].ID
	})
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *campaignRepository) Update(_ context.Context, c *model.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.db.campaigns[c.ID]
	if !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	if r.weekTaken(cur.SchoolID, c.WeekStart, c.ID) {
		return appErrors.ErrCampaignExists
	}
	now := time.Now()
	cur.Title, cur.WeekStart, cur.WeekEnd, cur.Status, cur.UpdatedAt = c.Title, c.WeekStart, c.WeekEnd, c.Status, &now
	r.s.db.campaigns[c.ID] = cur
	return nil
}

func (r *campaignRepository) UpdateStatus(_ context.Context, id int, status model.CampaignStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.db.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	now := time.Now()
	c.Status, c.UpdatedAt = status, &now
	r.s.db.campaigns[id] = c
	return nil
}

func (r *campaignRepository) SaveCompiled(_ context.Context, id int, ptaHTML, schoolHTML string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.db.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.PTAHTML, c.SchoolHTML = ptaHTML, schoolHTML
	r.s.db.campaigns[id] = c
	return nil
}

func (r *campaignRepository) MarkSent(_ context.Context, id, sentBy int, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.db.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if c.IsSent() {
		return appErrors.ErrCampaignSent
	}
	c.Status, c.SentAt, c.SentBy, c.UpdatedAt = model.CampaignStatusSent, &sentAt, &sentBy, &sentAt
	r.s.db.campaigns[id] = c
	return nil
}

// ====================== Sections ======================

type sectionRepository struct{ s *Store }

func (r *sectionRepository) ListByCampaign(_ context.Context, campaignID int) ([]model.Section, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Section{}
	for _, sec := range r.s.db.sections {
		if sec.CampaignID == campaignID {
			out = append(out, sec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *sectionRepository) GetByID(_ context.Context, id int) (*model.Section, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sec, ok := r.s.db.sections[id]
	if !ok {
		return nil, appErrors.NewSectionNotFound(id)
	}
	return &sec, nil
}

func (r *sectionRepository) NextSortOrder(_ context.Context, campaignID int) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	next := 0
	for _, sec := range r.s.db.sections {
		if sec.CampaignID == campaignID && sec.SortOrder >= next {
			next = sec.SortOrder + 1
		}
	}
	return next, nil
}

func (r *sectionRepository) Create(_ context.Context, sec *model.Section) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("sections.Create"); err != nil {
		return err
	}
	now := time.Now()
	sec.ID = r.s.nextID()
	sec.CreatedAt, sec.UpdatedAt = now, now
	r.s.db.sections[sec.ID] = *sec
	return nil
}

func (r *sectionRepository) Update(_ context.Context, sec *model.Section) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.db.sections[sec.ID]
	if !ok {
		return appErrors.NewSectionNotFound(sec.ID)
	}
	sec.UpdatedAt = time.Now()
	sec.CampaignID, sec.SortOrder, sec.CreatedAt = cur.CampaignID, cur.SortOrder, cur.CreatedAt
	r.s.db.sections[sec.ID] = *sec
	return nil
}

func (r *sectionRepository) Delete(_ context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.db.sections, id)
	return nil
}

func (r *sectionRepository) DeleteByCampaign(_ context.Context, campaignID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("sections.DeleteByCampaign"); err != nil {
		return err
	}
	for id, sec := range r.s.db.sections {
		if sec.CampaignID == campaignID {
			delete(r.s.db.sections, id)
		}
	}
	return nil
}

func (r *sectionRepository) SetSortOrders(_ context.Context, campaignID int, orderedIDs []int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("sections.SetSortOrders"); err != nil {
		return err
	}
	for i, id := range orderedIDs {
		sec, ok := r.s.db.sections[id]
		if !ok || sec.CampaignID != campaignID {
			continue
		}
		sec.SortOrder = i
		r.s.db.sections[id] = sec
	}
	return nil
}

// ====================== Content ======================

type contentRepository struct{ s *Store }

func copyItem(item model.ContentItem) model.ContentItem {
	item.Images = append([]model.ContentImage(nil), item.Images...)
	return item
}

func (r *contentRepository) ListPending(_ context.Context, schoolID int) ([]model.ContentItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ContentItem{}
	for _, item := range r.s.db.content {
		if item.SchoolID == schoolID && item.Status == model.ContentStatusPending {
			out = append(out, copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *contentRepository) GetByID(_ context.Context, id int) (*model.ContentItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	item, ok := r.s.db.content[id]
	if !ok {
		return nil, appErrors.NewContentItemNotFound(id)
	}
	item = copyItem(item)
	return &item, nil
}

func (r *contentRepository) Create(_ context.Context, item *model.ContentItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = r.s.nextID()
	item.CreatedAt = time.Now()
	if item.Status == "" {
		item.Status = model.ContentStatusPending
	}
	// The item row lands before its images, as with the SQL store.
	stored := *item
	stored.Images = nil
	r.s.db.content[item.ID] = copyItem(stored)
	for i := range item.Images {
		if err := r.s.injected("content.CreateImage"); err != nil {
			return err
		}
		item.Images[i].ID = r.s.nextID()
		item.Images[i].ContentItemID = item.ID
		item.Images[i].SortOrder = i
	}
	r.s.db.content[item.ID] = copyItem(*item)
	return nil
}

func (r *contentRepository) MarkIncluded(_ context.Context, id, campaignID int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.db.content[id]
	if !ok || item.Status != model.ContentStatusPending {
		return false, nil
	}
	item.Status = model.ContentStatusIncluded
	item.IncludedInCampaignID = &campaignID
	r.s.db.content[id] = item
	return true, nil
}

func (r *contentRepository) MarkSkipped(_ context.Context, id int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.db.content[id]
	if !ok || item.Status != model.ContentStatusPending {
		return false, nil
	}
	item.Status = model.ContentStatusSkipped
	r.s.db.content[id] = item
	return true, nil
}

func (r *contentRepository) MarkAllIncluded(_ context.Context, schoolID, campaignID int, ids []int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("content.MarkAllIncluded"); err != nil {
		return nil, err
	}
	changed := []int{}
	for _, id := range ids {
		item, ok := r.s.db.content[id]
		if !ok || item.SchoolID != schoolID || item.Status != model.ContentStatusPending {
			continue
		}
		cid := campaignID
		item.Status = model.ContentStatusIncluded
		item.IncludedInCampaignID = &cid
		r.s.db.content[id] = item
		changed = append(changed, id)
	}
	sort.Ints(changed)
	return changed, nil
}

// ====================== Sources ======================

type sourceRepository struct{ s *Store }

func (r *sourceRepository) GetSchool(_ context.Context, id int) (*model.School, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	school, ok := r.s.db.schools[id]
	if !ok {
		return nil, appErrors.NewSchoolNotFound(id)
	}
	return &school, nil
}

func (r *sourceRepository) ListSchools(_ context.Context) ([]model.School, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.School, 0, len(r.s.db.schools))
	for _, school := range r.s.db.schools {
		out = append(out, school)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *sourceRepository) ListEvents(_ context.Context, schoolID int, w repository.TimeWindow) ([]model.CalendarEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.CalendarEvent{}
	for _, e := range r.s.db.events {
		if e.SchoolID == schoolID && w.Contains(e.StartTime) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *sourceRepository) GetEvent(_ context.Context, id int) (*model.CalendarEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.db.events[id]
	if !ok {
		return nil, appErrors.NewNotFound("event", id)
	}
	return &e, nil
}

func (r *sourceRepository) ListApprovedMinutes(_ context.Context, schoolID int, since time.Time, limit int) ([]model.MinutesRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.MinutesRecord{}
	for _, m := range r.s.db.minutes {
		if m.SchoolID == schoolID && m.Status == model.MinutesStatusApproved && !m.MeetingDate.Before(since) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MeetingDate.Equal(out[j].MeetingDate) {
			return out[i].MeetingDate.After(out[j].MeetingDate)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *sourceRepository) ListActiveTemplates(_ context.Context, schoolID int) ([]model.RecurringTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.RecurringTemplate{}
	for _, t := range r.s.db.templates {
		if t.SchoolID == schoolID && t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DefaultSortOrder != out[j].DefaultSortOrder {
			return out[i].DefaultSortOrder < out[j].DefaultSortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *sourceRepository) ListApprovedBoard(_ context.Context, schoolID int) ([]model.BoardMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.BoardMember{}
	for _, m := range r.s.db.board {
		if m.SchoolID == schoolID && m.Approved {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ====================== Deliveries ======================

type deliveryRepository struct{ s *Store }

func (r *deliveryRepository) Upsert(_ context.Context, d *model.Delivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.db.deliveries {
		if cur.CampaignID == d.CampaignID && cur.Audience == d.Audience {
			cur.Recipient = d.Recipient
			r.s.db.deliveries[cur.ID] = cur
			*d = cur
			return nil
		}
	}
	now := time.Now()
	d.ID = r.s.nextID()
	if d.Status == "" {
		d.Status = model.DeliveryPending
	}
	d.CreatedAt, d.UpdatedAt = now, now
	r.s.db.deliveries[d.ID] = *d
	return nil
}

func (r *deliveryRepository) UpdateStatus(_ context.Context, id int, status model.DeliveryStatus, lastError string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.db.deliveries[id]
	if !ok {
		return appErrors.NewNotFound("delivery", id)
	}
	d.Status, d.LastError, d.UpdatedAt = status, lastError, time.Now()
	if status == model.DeliveryFailed {
		d.RetryCount++
	}
	r.s.db.deliveries[id] = d
	return nil
}

func (r *deliveryRepository) ListByCampaign(_ context.Context, campaignID int) ([]model.Delivery, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Delivery{}
	for _, d := range r.s.db.deliveries {
		if d.CampaignID == campaignID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ repository.Store = (*Store)(nil)
