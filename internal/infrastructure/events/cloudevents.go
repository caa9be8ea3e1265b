package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"scholarflow/internal/bootstrap/config"
	"scholarflow/internal/domain/event"
	"scholarflow/internal/errs"
)

const cloudEventTypePrefix = "org.scholarflow."

// CloudEventsPublisher posts every event to an HTTP sink in CloudEvents
// binary mode. The event log id is the CloudEvent id, so sinks can dedupe
// redeliveries.
type CloudEventsPublisher struct {
	client cloudevents.Client
	target string
	source string
}

func NewCloudEventsPublisher(cfg config.CloudEventsNotifyConfig) (*CloudEventsPublisher, error) {
	if strings.TrimSpace(cfg.Target) == "" {
		return nil, errors.New("notify.cloudevents.target is required")
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, errs.Wrap(err, "create cloudevents client")
	}
	source := strings.TrimSpace(cfg.Source)
	if source == "" {
		source = "scholarflow"
	}
	return &CloudEventsPublisher{client: client, target: cfg.Target, source: source}, nil
}

func (p *CloudEventsPublisher) Name() string { return "cloudevents" }

func (p *CloudEventsPublisher) Publish(ctx context.Context, evt event.Event) error {
	ce, err := toCloudEvent(p.source, evt)
	if err != nil {
		return err
	}
	result := p.client.Send(cloudevents.ContextWithTarget(ctx, p.target), ce)
	if cloudevents.IsUndelivered(result) {
		return errs.Wrapf(result, "deliver event %d", evt.ID)
	}
	if !cloudevents.IsACK(result) {
		return fmt.Errorf("event %d not acknowledged: %w", evt.ID, result)
	}
	return nil
}

func toCloudEvent(source string, evt event.Event) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(strconv.FormatUint(evt.ID, 10))
	ce.SetSource(source)
	ce.SetType(cloudEventTypePrefix + toSnake(string(evt.Type)))
	ce.SetSubject(evt.AggregateID)
	ce.SetTime(evt.CreatedAt)
	if evt.Actor != "" {
		ce.SetExtension("actor", evt.Actor)
	}
	if err := ce.SetData(cloudevents.ApplicationJSON, evt.Payload); err != nil {
		return cloudevents.Event{}, errs.Wrap(err, "encode cloudevent data")
	}
	return ce, nil
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
