// Package projection builds local read models from observed events.
// It never mutates stores or emits events of its own.
package projection

import (
	"ledger-lab/domain"
	"ledger-lab/domain/event"
)

// Timeline holds one principal's conversation view: every direct message
// they sent or received, in the order the events arrived.
type Timeline struct {
	Owner    domain.Principal
	Messages []domain.Message
}

func NewTimeline(owner domain.Principal) *Timeline {
	return &Timeline{
		Owner:    owner,
		Messages: nil,
	}
}

func (t *Timeline) Consume(e event.LedgerEvent) {
	switch evt := e.(type) {
	case event.MessageSent:
		if evt.Sender == t.Owner || evt.Receiver == t.Owner {
			t.Messages = append(t.Messages, fromEvent(evt))
		}
	}
}

func fromEvent(event event.MessageSent) domain.Message {
	return domain.Message{
		ID:       event.ID,
		Sender:   event.Sender,
		Receiver: event.Receiver,
		Body:     event.Body,
		SentAt:   event.At,
	}
}
