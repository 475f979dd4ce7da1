package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

type fakeChannel struct {
	declared  string
	published []amqp.Publishing
	keys      []string
	err       error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	if kind != "topic" || !durable {
		return errors.New("unexpected exchange settings")
	}
	f.declared = name
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, exchange+"/"+key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQP_PublishesStatusEvent(t *testing.T) {
	ch := &fakeChannel{}
	n, err := NewAMQP(ch, "campaign.events")
	require.NoError(t, err)
	assert.Equal(t, "campaign.events", ch.declared)

	ev := StatusEvent{
		OrganizationID: "org-1",
		CampaignID:     "c-1",
		Status:         domain.CampaignSent,
		Counters:       domain.CampaignCounters{Total: 3, Sent: 2, Suppressed: 1},
		OccurredAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, n.CampaignStatusChanged(context.Background(), ev))

	require.Len(t, ch.published, 1)
	assert.Equal(t, []string{"campaign.events/campaign.sent"}, ch.keys)
	msg := ch.published[0]
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)

	var got StatusEvent
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, ev, got)
}

func TestAMQP_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	n, err := NewAMQP(ch, "campaign.events")
	require.NoError(t, err)

	err = n.CampaignStatusChanged(context.Background(), StatusEvent{Status: domain.CampaignReady})
	assert.ErrorContains(t, err, "publish campaign.ready")
}

type recorder struct {
	events []StatusEvent
	err    error
}

func (r *recorder) CampaignStatusChanged(_ context.Context, e StatusEvent) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &recorder{err: errors.New("down")}, &recorder{}
	err := Multi{a, Log{}, b}.CampaignStatusChanged(context.Background(), StatusEvent{Status: domain.CampaignReady})

	assert.EqualError(t, err, "down")
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
