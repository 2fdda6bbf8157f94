package infrastructure

import (
	"fmt"

	"lottoclaim/domain/events"
)

const (
	subjectReconciliationCompleted = "lottery.reconciliation.completed"
	subjectClaimBatchSettled       = "lottery.claims.batch_settled"
	subjectClaimRunCompleted       = "lottery.claims.run_completed"
)

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its corresponding NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeReconciliationCompleted:
		return subjectReconciliationCompleted
	case events.EventTypeClaimBatchSettled:
		return subjectClaimBatchSettled
	case events.EventTypeClaimRunCompleted:
		return subjectClaimRunCompleted
	default:
		return fmt.Sprintf("lottery.unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case subjectReconciliationCompleted:
		return events.EventTypeReconciliationCompleted
	case subjectClaimBatchSettled:
		return events.EventTypeClaimBatchSettled
	case subjectClaimRunCompleted:
		return events.EventTypeClaimRunCompleted
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		subjectReconciliationCompleted,
		subjectClaimBatchSettled,
		subjectClaimRunCompleted,
	}
}
