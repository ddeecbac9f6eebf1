//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"ledger-lab/domain/event"
)

// EventSink consumes ledger events. Sinks must tolerate events they do
// not know; delivery is best-effort and errors are only logged.
type EventSink interface {
	Consume(ctx context.Context, e event.LedgerEvent) error
}

// EventName uses reflection to retrieve the type name of an event,
// for logging and auditing purposes.
func EventName(e event.LedgerEvent) string {
	if e == nil {
		return "NilEvent"
	}
	t := reflect.TypeOf(e)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
