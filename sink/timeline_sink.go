package sink

import (
	"context"

	"ledger-lab/domain/event"
	"ledger-lab/projection"
)

// TimelineSink feeds a local timeline projection from the event stream.
type TimelineSink struct {
	timeline *projection.Timeline
}

func NewTimelineSink(timeline *projection.Timeline) TimelineSink {
	return TimelineSink{timeline: timeline}
}

func (s TimelineSink) Consume(_ context.Context, e event.LedgerEvent) error {
	s.timeline.Consume(e)
	return nil
}
