// Package event defines the events emitted by the ledger service after a
// successful mutation. Delivery to sinks is best-effort and synchronous.
package event

import (
	"time"

	"github.com/google/uuid"

	"ledger-lab/domain"
)

// LedgerEvent is implemented by every event. Principal returns the
// identity the event should be attributed to.
type LedgerEvent interface {
	Principal() domain.Principal
}

type MessageSent struct {
	ID       uuid.UUID
	Sender   domain.Principal
	Receiver domain.Principal
	Body     string
	At       time.Time
}

func (e MessageSent) Principal() domain.Principal { return e.Sender }

type ExpirableMessageSent struct {
	ID        uuid.UUID
	Sender    domain.Principal
	Receiver  domain.Principal
	Body      string
	At        time.Time
	ExpiresAt time.Time
}

func (e ExpirableMessageSent) Principal() domain.Principal { return e.Sender }

type GroupCreated struct {
	Group   domain.GroupID
	Name    string
	Creator domain.Principal
	Members int
	At      time.Time
}

func (e GroupCreated) Principal() domain.Principal { return e.Creator }

type GroupMessageSent struct {
	Group   domain.GroupID
	Sender  domain.Principal
	Body    string
	Members int
	At      time.Time
}

func (e GroupMessageSent) Principal() domain.Principal { return e.Sender }

type MessageForwarded struct {
	ID             uuid.UUID
	Forwarder      domain.Principal
	OriginalSender domain.Principal
	OriginalIndex  uint64
	NewReceiver    domain.Principal
	At             time.Time
}

func (e MessageForwarded) Principal() domain.Principal { return e.Forwarder }

type MessageDeleted struct {
	Owner domain.Principal
	Box   domain.Box
	Index uint64
	At    time.Time
}

func (e MessageDeleted) Principal() domain.Principal { return e.Owner }

type MessageEdited struct {
	Owner domain.Principal
	Index uint64
	At    time.Time
}

func (e MessageEdited) Principal() domain.Principal { return e.Owner }

type SystemMessagePosted struct {
	Admin domain.Principal
	Body  string
	At    time.Time
}

func (e SystemMessagePosted) Principal() domain.Principal { return e.Admin }

type FundsDeposited struct {
	Account domain.Principal
	Amount  uint64
	At      time.Time
}

func (e FundsDeposited) Principal() domain.Principal { return e.Account }

type FundsTransferred struct {
	From   domain.Principal
	To     domain.Principal
	Amount uint64
	At     time.Time
}

func (e FundsTransferred) Principal() domain.Principal { return e.From }
