package infrastructure

import (
	"lottoclaim/domain/events"

	log "github.com/sirupsen/logrus"
)

// NoopEventPublisher drops events. Used by one-shot CLI commands and when NATS is not configured.
type NoopEventPublisher struct{}

func NewNoopEventPublisher() *NoopEventPublisher {
	return &NoopEventPublisher{}
}

func (n *NoopEventPublisher) Publish(event events.Event) error {
	log.WithField("eventType", event.Type()).Trace("Dropping event")
	return nil
}
