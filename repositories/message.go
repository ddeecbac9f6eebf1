//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"ledger-lab/domain"
	"ledger-lab/errors"
)

type IMessageRepository interface {
	Append(messages ...DiskMessage) error
	AppendExpirable(messages ...DiskExpirableMessage) error
	GetSent(principal string, index uint64) (DiskMessage, error)
	UpdateSent(principal string, index uint64, fn func(DiskMessage) (DiskMessage, error)) error
	UpdateReceived(principal string, index uint64, fn func(DiskMessage) (DiskMessage, error)) error
	ListSent(principal string) ([]DiskMessage, error)
	ListReceived(principal string) ([]DiskMessage, error)
	ListExpirable(principal string, box domain.Box) ([]DiskExpirableMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// DiskMessage is the storage representation of one log entry.
// A tombstone keeps its slot with Deleted set, so indexes stay stable.
type DiskMessage struct {
	ID       uuid.UUID `json:"id"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
	Body     string    `json:"body"`
	SentAt   int64     `json:"sent_at"` // unix nanoseconds, UTC
	Deleted  bool      `json:"deleted,omitempty"`
}

type DiskExpirableMessage struct {
	DiskMessage
	ExpiresAt int64 `json:"expires_at"` // unix nanoseconds, UTC
}

// Append writes every entry to both the sender's sent log and the
// receiver's received log in a single transaction. Either every copy of
// every entry is committed or none is.
func (m MessageRepository) Append(messages ...DiskMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return runUpdate(m.db, func(txn *badger.Txn) error {
		for _, msg := range messages {
			if err := appendEntry(txn, prefixSent, msg.Sender, msg); err != nil {
				return err
			}
			if err := appendEntry(txn, prefixReceived, msg.Receiver, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendExpirable behaves like Append for the expirable logs.
func (m MessageRepository) AppendExpirable(messages ...DiskExpirableMessage) error {
	if len(messages) == 0 {
		return nil
	}
	return runUpdate(m.db, func(txn *badger.Txn) error {
		for _, msg := range messages {
			if err := appendEntry(txn, prefixExpSent, msg.Sender, msg); err != nil {
				return err
			}
			if err := appendEntry(txn, prefixExpReceived, msg.Receiver, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// appendEntry writes one value at the next slot of a log and bumps the
// log's counter within the caller's transaction.
func appendEntry(txn *badger.Txn, prefix, principal string, v any) error {
	cntKey := counterKey(prefix, principal)
	length, err := readUint(txn, cntKey)
	if err != nil {
		return err
	}
	bytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err = txn.Set(logKey(prefix, principal, length), bytes); err != nil {
		return err
	}
	return writeUint(txn, cntKey, length+1)
}

// GetSent returns one slot of a principal's sent log.
// Fails with ErrMessageNotFound when the index is out of bounds.
func (m MessageRepository) GetSent(principal string, index uint64) (DiskMessage, error) {
	var msg DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		return readEntry(txn, prefixSent, principal, index, &msg)
	})
	return msg, err
}

func (m MessageRepository) UpdateSent(principal string, index uint64, fn func(DiskMessage) (DiskMessage, error)) error {
	return m.update(prefixSent, principal, index, fn)
}

func (m MessageRepository) UpdateReceived(principal string, index uint64, fn func(DiskMessage) (DiskMessage, error)) error {
	return m.update(prefixReceived, principal, index, fn)
}

// update applies fn to one slot in a single transaction. If fn returns an
// error the transaction is discarded and the slot is left unchanged.
func (m MessageRepository) update(prefix, principal string, index uint64, fn func(DiskMessage) (DiskMessage, error)) error {
	return runUpdate(m.db, func(txn *badger.Txn) error {
		var msg DiskMessage
		if err := readEntry(txn, prefix, principal, index, &msg); err != nil {
			return err
		}
		updated, err := fn(msg)
		if err != nil {
			return err
		}
		bytes, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		return txn.Set(logKey(prefix, principal, index), bytes)
	})
}

func readEntry(txn *badger.Txn, prefix, principal string, index uint64, out any) error {
	length, err := readUint(txn, counterKey(prefix, principal))
	if err != nil {
		return err
	}
	if index >= length {
		return errors.ErrMessageNotFound
	}
	item, err := txn.Get(logKey(prefix, principal, index))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// ListSent returns the full sent log in storage order, tombstones included.
func (m MessageRepository) ListSent(principal string) ([]DiskMessage, error) {
	return m.list(prefixSent, principal)
}

// ListReceived returns the full received log in storage order, tombstones included.
func (m MessageRepository) ListReceived(principal string) ([]DiskMessage, error) {
	return m.list(prefixReceived, principal)
}

func (m MessageRepository) list(prefix, principal string) ([]DiskMessage, error) {
	var out []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := logPrefix(prefix, principal)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var msg DiskMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	return out, err
}

// ListExpirable returns one expirable log in full; validity filtering is
// the caller's concern since it depends on the read instant.
func (m MessageRepository) ListExpirable(principal string, box domain.Box) ([]DiskExpirableMessage, error) {
	prefix := prefixExpSent
	if box == domain.BoxReceived {
		prefix = prefixExpReceived
	}
	var out []DiskExpirableMessage
	err := m.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		p := logPrefix(prefix, principal)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var msg DiskExpirableMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			})
			if err != nil {
				return err
			}
			out = append(out, msg)
		}
		return nil
	})
	return out, err
}

// FromMessage converts a domain message to its storage shape.
func FromMessage(msg domain.Message) DiskMessage {
	return DiskMessage{
		ID:       msg.ID,
		Sender:   string(msg.Sender),
		Receiver: string(msg.Receiver),
		Body:     msg.Body,
		SentAt:   msg.SentAt.UnixNano(),
		Deleted:  msg.Deleted,
	}
}

// ToExpirableMessage converts a stored expirable entry back to the
// domain shape.
func ToExpirableMessage(msg DiskExpirableMessage) domain.ExpirableMessage {
	return domain.ExpirableMessage{
		Message:   ToMessage(msg.DiskMessage),
		ExpiresAt: time.Unix(0, msg.ExpiresAt).UTC(),
	}
}

// ToMessage converts a stored entry back to the domain shape.
func ToMessage(msg DiskMessage) domain.Message {
	if msg.Deleted {
		return domain.Tombstone()
	}
	return domain.Message{
		ID:       msg.ID,
		Sender:   domain.Principal(msg.Sender),
		Receiver: domain.Principal(msg.Receiver),
		Body:     msg.Body,
		SentAt:   time.Unix(0, msg.SentAt).UTC(),
		Deleted:  msg.Deleted,
	}
}

var _ IMessageRepository = MessageRepository{}
