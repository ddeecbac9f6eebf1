//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"ledger-lab/errors"
)

type IGroupRepository interface {
	Create(name string, members []string, createdAt time.Time) (uint64, error)
	Get(id uint64) (DiskGroup, error)
	Count() (uint64, error)
}

type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) GroupRepository {
	return GroupRepository{db: db, log: log}
}

// DiskGroup is the storage representation of a group.
// Members keep the order they were given at creation, duplicates included.
type DiskGroup struct {
	ID        uint64   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"` // unix nanoseconds, UTC
}

// Create assigns the next dense id and stores the group, both in one
// transaction so ids stay gapless under any interleaving.
func (g GroupRepository) Create(name string, members []string, createdAt time.Time) (uint64, error) {
	var id uint64
	err := runUpdate(g.db, func(txn *badger.Txn) error {
		count, err := readUint(txn, groupCountKey())
		if err != nil {
			return err
		}
		id = count
		group := DiskGroup{
			ID:        id,
			Name:      name,
			Members:   members,
			CreatedAt: createdAt.UnixNano(),
		}
		bytes, err := json.Marshal(group)
		if err != nil {
			return err
		}
		if err = txn.Set(groupKey(id), bytes); err != nil {
			return err
		}
		return writeUint(txn, groupCountKey(), id+1)
	})
	return id, err
}

// Get fails with ErrGroupNotFound unless id < Count. Strict bounds: an id
// equal to the count has never been assigned.
func (g GroupRepository) Get(id uint64) (DiskGroup, error) {
	var group DiskGroup
	err := g.db.View(func(txn *badger.Txn) error {
		count, err := readUint(txn, groupCountKey())
		if err != nil {
			return err
		}
		if id >= count {
			return errors.ErrGroupNotFound
		}
		item, err := txn.Get(groupKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &group)
		})
	})
	return group, err
}

func (g GroupRepository) Count() (uint64, error) {
	var count uint64
	err := g.db.View(func(txn *badger.Txn) error {
		n, err := readUint(txn, groupCountKey())
		count = n
		return err
	})
	return count, err
}

var _ IGroupRepository = GroupRepository{}
