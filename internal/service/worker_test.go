package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/pta-newsletter/internal/mailer"
	"github.com/unclebandit/pta-newsletter/internal/model"
	"github.com/unclebandit/pta-newsletter/internal/service"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail map[string]error
}

func (s *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[msg.To]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func sentCampaign(t *testing.T, f *fixture) *model.Campaign {
	t.Helper()
	c := f.newCampaign(t)
	f.addSection(t, c.ID, "Alpha", model.AudienceAll)
	f.addSection(t, c.ID, "Bravo", model.AudiencePTAOnly)
	sent, err := f.campaigns.Send(context.Background(), f.actor, c.ID)
	require.NoError(t, err)
	return sent
}

func TestDeliveryWorker_SendsBothAudiences(t *testing.T) {
	f := newFixture(t)
	c := sentCampaign(t, f)
	sender := &fakeSender{}
	w := service.NewDeliveryWorker(f.store, sender, f.metrics, nil)

	require.NoError(t, w.Handle(context.Background(), f.queue.published[0].(model.DeliveryJob)))

	require.Len(t, sender.sent, 2)
	byTo := map[string]mailer.Message{}
	for _, m := range sender.sent {
		byTo[m.To] = m
	}
	pta := byTo["pta@maple.test"]
	assert.Equal(t, c.Title, pta.Subject)
	assert.Contains(t, pta.HTML, "Bravo")
	assert.Contains(t, pta.Text, "Bravo")
	families := byTo["families@maple.test"]
	assert.NotContains(t, families.HTML, "Bravo")

	deliveries, err := f.store.Repos().Deliveries.ListByCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	for _, d := range deliveries {
		assert.Equal(t, model.DeliverySent, d.Status)
	}

	require.NoError(t, w.Handle(context.Background(), model.DeliveryJob{CampaignID: c.ID}))
	assert.Len(t, sender.sent, 2, "redelivered job sends nothing twice")
}

func TestDeliveryWorker_RetriesOnlyFailedAudience(t *testing.T) {
	f := newFixture(t)
	c := sentCampaign(t, f)
	sender := &fakeSender{fail: map[string]error{"families@maple.test": errors.New("550 mailbox unavailable")}}
	w := service.NewDeliveryWorker(f.store, sender, f.metrics, nil)
	ctx := context.Background()

	err := w.Handle(ctx, model.DeliveryJob{CampaignID: c.ID})
	require.Error(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "pta@maple.test", sender.sent[0].To)

	deliveries, err := f.store.Repos().Deliveries.ListByCampaign(ctx, c.ID)
	require.NoError(t, err)
	var failed model.Delivery
	for _, d := range deliveries {
		if d.Audience == model.AudienceAll {
			failed = d
		}
	}
	assert.Equal(t, model.DeliveryFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)
	assert.Contains(t, failed.LastError, "550")

	sender.fail = nil
	require.NoError(t, w.Handle(ctx, model.DeliveryJob{CampaignID: c.ID}))
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "families@maple.test", sender.sent[1].To)
}

func TestDeliveryWorker_IgnoresUnsentCampaign(t *testing.T) {
	f := newFixture(t)
	c := f.newCampaign(t)
	sender := &fakeSender{}

	require.NoError(t, service.NewDeliveryWorker(f.store, sender, nil, nil).Handle(context.Background(), model.DeliveryJob{CampaignID: c.ID}))
	assert.Empty(t, sender.sent)
}
