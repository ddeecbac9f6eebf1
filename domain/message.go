package domain

import (
	"time"

	"github.com/google/uuid"
)

// EditWindow is the period after send during which the original sender
// may still change a message body.
const EditWindow = 24 * time.Hour

// Message represents one entry in a sent or received log.
// The copy in the sender's log and the copy in the receiver's log are
// independent after creation.
type Message struct {
	ID       uuid.UUID
	Sender   Principal
	Receiver Principal
	Body     string
	SentAt   time.Time
	Deleted  bool // tombstone marker, the slot keeps its index
}

// Tombstone returns the entry that replaces a logically deleted message.
func Tombstone() Message {
	return Message{Deleted: true}
}

// WithinEditWindow reports whether the message body may still be edited at now.
func (m Message) WithinEditWindow(now time.Time) bool {
	return now.Before(m.SentAt.Add(EditWindow))
}

// ExpirableMessage wraps a Message with an expiry instant.
// It stays stored after expiry but is excluded from reads.
type ExpirableMessage struct {
	Message   Message
	ExpiresAt time.Time
}

// Valid reports whether the message is still visible at now.
// A ttl of zero expires the message at its own send instant.
func (e ExpirableMessage) Valid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Box selects one of a principal's two message logs.
type Box int

const (
	BoxSent Box = iota
	BoxReceived
)

func (b Box) String() string {
	if b == BoxReceived {
		return "received"
	}
	return "sent"
}
