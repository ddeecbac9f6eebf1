// Package ledger defines the commands carried from the boundary to the
// ledger service. The acting principal is always an explicit field,
// asserted by the boundary, never ambient state.
package ledger

import (
	"time"

	"ledger-lab/domain"
)

// SendMessageCommand appends one message to the sender's sent log and the
// receiver's received log. The receiver is not validated: it may be the
// null principal or the sender itself.
type SendMessageCommand struct {
	Sender   domain.Principal `validate:"required"`
	Receiver domain.Principal
	Body     string
}

// BroadcastCommand fans one body out to several receivers in the given order.
type BroadcastCommand struct {
	Sender    domain.Principal `validate:"required"`
	Receivers []domain.Principal
	Body      string
}

// SendExpirableCommand sends a message visible only until now+TTL.
// A zero TTL is accepted and yields an immediately expired message.
type SendExpirableCommand struct {
	Sender   domain.Principal `validate:"required"`
	Receiver domain.Principal
	Body     string
	TTL      time.Duration
}

// CreateGroupCommand registers a new group. Members are stored as given,
// duplicates included.
type CreateGroupCommand struct {
	Creator domain.Principal `validate:"required"`
	Name    string
	Members []domain.Principal
}

// GroupMessageCommand fans one body out to every member of a group.
type GroupMessageCommand struct {
	Sender domain.Principal `validate:"required"`
	Group  domain.GroupID
	Body   string
}

// ForwardCommand copies the body of an existing sent message into a fresh
// message from the forwarder to a new receiver.
type ForwardCommand struct {
	Forwarder      domain.Principal `validate:"required"`
	OriginalSender domain.Principal
	OriginalIndex  uint64
	NewReceiver    domain.Principal
}

// DeleteCommand tombstones one slot of the caller's sent or received log.
type DeleteCommand struct {
	Caller domain.Principal `validate:"required"`
	Index  uint64
}

// EditCommand replaces the body of a message in the caller's sent log,
// within the edit window only.
type EditCommand struct {
	Caller  domain.Principal `validate:"required"`
	Index   uint64
	NewBody string
}

// SystemMessageCommand appends to the global system log. Admin only.
type SystemMessageCommand struct {
	Caller domain.Principal `validate:"required"`
	Body   string
}

// DepositCommand credits the caller's balance.
type DepositCommand struct {
	Caller domain.Principal `validate:"required"`
	Amount uint64
}

// TransferCommand moves funds from the caller to another principal.
type TransferCommand struct {
	From   domain.Principal `validate:"required"`
	To     domain.Principal
	Amount uint64
}
