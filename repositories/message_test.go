package repositories

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"ledger-lab/domain"
	"ledger-lab/errors"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(sender, receiver, body string, at time.Time) DiskMessage {
	return DiskMessage{
		ID:       uuid.New(),
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
		SentAt:   at.UnixNano(),
	}
}

func Test_Append_Keeps_Send_Order_In_Both_Logs(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	at := time.Now().UTC()
	messages := []DiskMessage{
		newMessage("alice", "bob", "first", at),
		newMessage("alice", "bob", "second", at.Add(time.Minute)),
		newMessage("alice", "bob", "third", at.Add(2*time.Minute)),
	}
	for _, msg := range messages {
		req.NoError(repository.Append(msg))
	}

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Equal(messages, sent)

	received, err := repository.ListReceived("bob")
	req.NoError(err)
	req.Equal(messages, received)
}

func Test_Append_Without_Messages_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	req.NoError(repository.Append())

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Empty(sent)
}

func Test_Self_Send_Lands_In_Both_Own_Logs(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	msg := newMessage("alice", "alice", "note to self", time.Now().UTC())
	req.NoError(repository.Append(msg))

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Len(sent, 1)

	received, err := repository.ListReceived("alice")
	req.NoError(err)
	req.Len(received, 1)
	req.Equal(sent[0], received[0])
}

func Test_Update_Tombstones_Slot_And_Keeps_Length(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	at := time.Now().UTC()
	req.NoError(repository.Append(
		newMessage("alice", "bob", "keep me", at),
		newMessage("alice", "bob", "delete me", at.Add(time.Minute)),
	))

	err := repository.UpdateSent("alice", 1, func(DiskMessage) (DiskMessage, error) {
		return DiskMessage{Deleted: true}, nil
	})
	req.NoError(err)

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Len(sent, 2)
	req.Equal("keep me", sent[0].Body)
	req.True(sent[1].Deleted)
	req.Empty(sent[1].Body)
}

func Test_Update_Out_Of_Bounds_Fails_And_Changes_Nothing(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	msg := newMessage("alice", "bob", "only one", time.Now().UTC())
	req.NoError(repository.Append(msg))

	err := repository.UpdateSent("alice", 1, func(DiskMessage) (DiskMessage, error) {
		return DiskMessage{Deleted: true}, nil
	})
	req.ErrorIs(err, errors.ErrMessageNotFound)

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Equal([]DiskMessage{msg}, sent)
}

func Test_Update_Rolls_Back_When_Fn_Fails(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	msg := newMessage("alice", "bob", "untouched", time.Now().UTC())
	req.NoError(repository.Append(msg))

	err := repository.UpdateSent("alice", 0, func(m DiskMessage) (DiskMessage, error) {
		m.Body = "should never be stored"
		return m, errors.ErrNotSender
	})
	req.ErrorIs(err, errors.ErrNotSender)

	sent, err := repository.ListSent("alice")
	req.NoError(err)
	req.Equal("untouched", sent[0].Body)
}

func Test_GetSent_Checks_Bounds(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	msg := newMessage("alice", "bob", "hello", time.Now().UTC())
	req.NoError(repository.Append(msg))

	found, err := repository.GetSent("alice", 0)
	req.NoError(err)
	req.Equal(msg, found)

	_, err = repository.GetSent("alice", 1)
	req.ErrorIs(err, errors.ErrMessageNotFound)

	_, err = repository.GetSent("nobody-ever-sent", 0)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func Test_Copies_Are_Independent_After_Append(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	req.NoError(repository.Append(newMessage("alice", "bob", "original", time.Now().UTC())))

	err := repository.UpdateSent("alice", 0, func(DiskMessage) (DiskMessage, error) {
		return DiskMessage{Deleted: true}, nil
	})
	req.NoError(err)

	received, err := repository.ListReceived("bob")
	req.NoError(err)
	req.Len(received, 1)
	req.False(received[0].Deleted)
	req.Equal("original", received[0].Body)
}

func Test_Expirable_Logs_Are_Separate_From_Direct_Logs(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	at := time.Now().UTC()
	expirable := DiskExpirableMessage{
		DiskMessage: newMessage("alice", "bob", "short lived", at),
		ExpiresAt:   at.Add(time.Hour).UnixNano(),
	}
	req.NoError(repository.AppendExpirable(expirable))

	sent, err := repository.ListExpirable("alice", domain.BoxSent)
	req.NoError(err)
	req.Equal([]DiskExpirableMessage{expirable}, sent)

	received, err := repository.ListExpirable("bob", domain.BoxReceived)
	req.NoError(err)
	req.Equal([]DiskExpirableMessage{expirable}, received)

	direct, err := repository.ListSent("alice")
	req.NoError(err)
	req.Empty(direct)
}

func Test_ToMessage_Maps_Tombstones_To_The_Domain_Tombstone(t *testing.T) {
	req := require.New(t)

	msg := ToMessage(DiskMessage{Deleted: true})
	req.Equal(domain.Tombstone(), msg)

	original := newMessage("alice", "bob", "hello", time.Now().UTC())
	roundTripped := FromMessage(ToMessage(original))
	req.Equal(original, roundTripped)
}

func Test_Concurrent_Appends_To_One_Log_All_Land(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	const senders = 20
	var wg sync.WaitGroup
	errs := make(chan error, senders)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := fmt.Sprintf("sender-%d", i)
			errs <- repository.Append(newMessage(sender, "bob", "hello", time.Now().UTC()))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	received, err := repository.ListReceived("bob")
	req.NoError(err)
	req.Len(received, senders)
}

func Test_Principals_Containing_The_Delimiter_Get_Their_Own_Logs(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(newTestDB(t), slog.Default())

	msg := newMessage("a:b", "victim", "secret", time.Now().UTC())
	req.NoError(repository.Append(msg))

	sent, err := repository.ListSent("a")
	req.NoError(err)
	req.Empty(sent)

	sent, err = repository.ListSent("a:b")
	req.NoError(err)
	req.Equal([]DiskMessage{msg}, sent)

	_, err = repository.GetSent("a", 0)
	req.ErrorIs(err, errors.ErrMessageNotFound)
}
