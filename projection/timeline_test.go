package projection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ledger-lab/domain"
	"ledger-lab/domain/event"
)

func sentEvent(sender, receiver domain.Principal, body string) event.MessageSent {
	return event.MessageSent{
		ID:       uuid.New(),
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
		At:       time.Now().UTC(),
	}
}

func Test_Timeline_Keeps_Only_The_Owners_Conversations(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("bob")

	timeline.Consume(sentEvent("alice", "bob", "for bob"))
	timeline.Consume(sentEvent("alice", "clara", "not for bob"))
	timeline.Consume(sentEvent("bob", "clara", "from bob"))

	req.Len(timeline.Messages, 2)
	req.Equal("for bob", timeline.Messages[0].Body)
	req.Equal("from bob", timeline.Messages[1].Body)
}

func Test_Timeline_Ignores_Unrelated_Events(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("bob")

	timeline.Consume(event.FundsDeposited{Account: "bob", Amount: 10, At: time.Now().UTC()})
	timeline.Consume(event.MessageDeleted{Owner: "bob", Box: domain.BoxReceived, Index: 0})

	req.Empty(timeline.Messages)
}

func Test_Timeline_Preserves_Arrival_Order(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	for _, body := range []string{"one", "two", "three"} {
		timeline.Consume(sentEvent("alice", "bob", body))
	}

	req.Equal("one", timeline.Messages[0].Body)
	req.Equal("two", timeline.Messages[1].Body)
	req.Equal("three", timeline.Messages[2].Body)
}
