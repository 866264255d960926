package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

// DraftCreator opens a week's draft unless the school already has one.
type DraftCreator interface {
	EnsureWeeklyDraft(ctx context.Context, schoolID int, weekStart time.Time) (*model.Campaign, bool, error)
}

// WeeklyDrafts creates next week's Monday-Sunday draft for every school.
type WeeklyDrafts struct {
	Store     repository.Store
	Campaigns DraftCreator
	Log       *slog.Logger
	Now       func() time.Time
}

// NextMonday returns the date of the first Monday strictly after now.
func NextMonday(now time.Time) time.Time {
	days := (8 - int(now.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC)
}

// Run returns how many drafts were created. A failure for one school is logged and the
// others still run.
func (j *WeeklyDrafts) Run(ctx context.Context) (int, error) {
	schools, err := j.Store.Repos().Sources.ListSchools(ctx)
	if err != nil {
		return 0, err
	}
	monday := NextMonday(j.Now())

	created := 0
	for _, s := range schools {
		c, isNew, err := j.Campaigns.EnsureWeeklyDraft(ctx, s.ID, monday)
		if err != nil {
			j.Log.Error("weekly draft failed", slog.Int("school_id", s.ID), slog.Any("error", err))
			continue
		}
		if isNew {
			created++
			j.Log.Info("weekly draft created", slog.Int("school_id", s.ID), slog.Int("campaign_id", c.ID))
		}
	}
	return created, nil
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewCronManager(log *slog.Logger) *CronManager {
	if log == nil {
		log = slog.Default()
	}
	return &CronManager{cron: cron.New(), log: log}
}

// AddWeeklyDrafts schedules j on a standard five-field cron spec.
func (cm *CronManager) AddWeeklyDrafts(spec string, j *WeeklyDrafts) error {
	_, err := cm.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		n, err := j.Run(ctx)
		if err != nil {
			cm.log.Error("weekly draft job failed", slog.Any("error", err))
			return
		}
		cm.log.Info("weekly draft job completed", slog.Int("created", n))
	})
	if err != nil {
		return err
	}
	cm.log.Info("scheduled weekly draft job", slog.String("spec", spec))
	return nil
}

func (cm *CronManager) Start() {
	cm.cron.Start()
}

// Stop waits for running jobs to finish.
func (cm *CronManager) Stop() {
	<-cm.cron.Stop().Done()
}
