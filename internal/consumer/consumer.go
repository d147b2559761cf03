// Package consumer bridges the platform's NSQ event stream into webhook
// fan-out. One consumer per daemon, reading the events topic on the
// notifier channel.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/nsqio/go-nsq"

	"github.com/plantpulse/plant_hook/internal/config"
	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/notify"
	"github.com/plantpulse/plant_hook/internal/tracing"
)

// Triggerer fans one event out to matching subscriptions.
type Triggerer interface {
	Trigger(ctx context.Context, evt event.Event) (notify.Summary, error)
}

type Consumer struct {
	nsqConsumer *nsq.Consumer
	svc         Triggerer
	log         *logging.Logger
}

func New(cfg config.NSQ, svc Triggerer, log *logging.Logger) (*Consumer, error) {
	conf := nsq.NewConfig()
	conf.MaxInFlight = 100

	nc, err := nsq.NewConsumer(cfg.EventsTopic, cfg.NotifierChannel, conf)
	if err != nil {
		return nil, err
	}

	c := &Consumer{nsqConsumer: nc, svc: svc, log: log}
	nc.AddHandler(nsq.HandlerFunc(c.handleMessage))
	return c, nil
}

// Connect attaches the consumer to nsqd and lookupd. Connecting directly to
// nsqd forces channel creation instead of waiting for the first publish.
func (c *Consumer) Connect(cfg config.NSQ) error {
	if err := c.nsqConsumer.ConnectToNSQD(cfg.NsqdTCPAddr); err != nil {
		return err
	}
	return c.nsqConsumer.ConnectToNSQLookupd(cfg.LookupHTTPAddr)
}

// Stop drains in-flight messages and blocks until the consumer has shut down.
func (c *Consumer) Stop() {
	c.nsqConsumer.Stop()
	<-c.nsqConsumer.StopChan
}

// handleMessage decodes one platform event and fans it out. Malformed
// messages are finished, not requeued; redelivering them cannot help.
// Delivery failures to individual endpoints are owned by the ledger and
// the sweep loop, so they also finish the message.
func (c *Consumer) handleMessage(m *nsq.Message) error {
	m.DisableAutoResponse()

	var evt event.Event
	if err := json.Unmarshal(m.Body, &evt); err != nil {
		c.log.Plain().WithError(err).Error("bad event payload")
		m.Finish()
		return nil
	}
	if evt.Type == "" {
		c.log.Plain().Error("event without event_type")
		m.Finish()
		return nil
	}

	ctx := tracing.ExtractTraceFromMessage(context.Background(), evt.TraceHeaders)
	if _, err := c.svc.Trigger(ctx, evt); err != nil {
		// Subscription lookup failed before any fan-out happened; requeue
		// so the event is not lost on a transient registry outage.
		c.log.WithContext(ctx).WithEventType(evt.Type).WithError(err).Error("event fan-out failed, requeueing")
		m.Requeue(-1)
		return nil
	}

	m.Finish()
	return nil
}
