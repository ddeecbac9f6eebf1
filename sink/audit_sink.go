package sink

import (
	"context"
	"log/slog"

	"ledger-lab/contract"
	"ledger-lab/domain/event"
)

// AuditSink writes one structured log record per ledger event.
type AuditSink struct {
	log *slog.Logger
}

func NewAuditSink(log *slog.Logger) AuditSink {
	return AuditSink{log: log}
}

func (a AuditSink) Consume(_ context.Context, e event.LedgerEvent) error {
	a.log.Info("Ledger event",
		"event", contract.EventName(e),
		"principal", string(e.Principal()))
	return nil
}
