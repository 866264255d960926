package service

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/htmlx"
	"github.com/unclebandit/pta-newsletter/internal/mailer"
	"github.com/unclebandit/pta-newsletter/internal/metrics"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/repository"
)

// DeliveryWorker emails a sent campaign: the PTA document to the PTA list and the school
// document to the families list. Each audience is tracked as one Delivery row so a retried
// job only resends what failed.
type DeliveryWorker struct {
	Store   repository.Store
	Sender  mailer.Sender
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

func NewDeliveryWorker(store repository.Store, sender mailer.Sender, m *metrics.Metrics, log *slog.Logger) *DeliveryWorker {
	if log == nil {
		log = slog.Default()
	}
	return &DeliveryWorker{Store: store, Sender: sender, Metrics: m, Log: log}
}

type delivery struct {
	audience  model.Audience
	recipient string
	html      string
}

// Handle processes one DeliveryJob. It returns an error when any audience failed so the queue
// retries the job.
func (w *DeliveryWorker) Handle(ctx context.Context, job model.DeliveryJob) error {
	r := w.Store.Repos()
	c, err := r.Campaigns.GetByID(ctx, job.CampaignID)
	if err != nil {
		return err
	}
	if !c.IsSent() {
		w.Log.Warn("delivery job for unsent campaign ignored", slog.Int("campaign_id", c.ID))
		return nil
	}
	school, err := r.Sources.GetSchool(ctx, c.SchoolID)
	if err != nil {
		return err
	}

	targets := []delivery{
		{audience: model.AudiencePTAOnly, recipient: school.PTAListEmail, html: c.PTAHTML},
		{audience: model.AudienceAll, recipient: school.FamiliesListEmail, html: c.SchoolHTML},
	}

	var failed int
	for _, t := range targets {
		log := w.Log.With(slog.Int("campaign_id", c.ID), slog.String("audience", string(t.audience)))
		if t.recipient == "" {
			log.Warn("school has no list address for audience, skipping")
			continue
		}

		d := &model.Delivery{CampaignID: c.ID, Audience: t.audience, Recipient: t.recipient, Status: model.DeliveryPending}
		if err := r.Deliveries.Upsert(ctx, d); err != nil {
			return err
		}
		if d.Status == model.DeliverySent {
			log.Info("already delivered, skipping")
			continue
		}

		msg := mailer.Message{
			To:      t.recipient,
			ToName:  school.Name,
			Subject: c.Title,
			HTML:    t.html,
			Text:    htmlx.ToText(t.html),
		}
		if err := w.Sender.Send(ctx, msg); err != nil {
			failed++
			log.Error("delivery failed", slog.String("recipient", t.recipient), slog.Any("error", err))
			w.Metrics.RecordDelivery(string(t.audience), string(model.DeliveryFailed))
			if uerr := r.Deliveries.UpdateStatus(ctx, d.ID, model.DeliveryFailed, err.Error()); uerr != nil {
				log.Error("failed to record delivery failure", slog.Any("error", uerr))
			}
			continue
		}

		w.Metrics.RecordDelivery(string(t.audience), string(model.DeliverySent))
		if err := r.Deliveries.UpdateStatus(ctx, d.ID, model.DeliverySent, ""); err != nil {
			return err
		}
		log.Info("delivered", slog.String("recipient", t.recipient))
	}

	if failed > 0 {
		return errors.Errorf("%d of %d deliveries failed for campaign %d", failed, len(targets), c.ID)
	}
	return nil
}
