//go:generate go run go.uber.org/mock/mockgen -source=system.go -destination=../mocks/mock_system_repository.go -package=mocks
package repositories

import (
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type ISystemRepository interface {
	Append(body string) error
	List() ([]string, error)
}

// SystemRepository holds the global broadcast log, readable by everyone.
// The admin gate lives in the service, not here.
type SystemRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSystemRepository(db *badger.DB, log *slog.Logger) SystemRepository {
	return SystemRepository{db: db, log: log}
}

func (s SystemRepository) Append(body string) error {
	return runUpdate(s.db, func(txn *badger.Txn) error {
		count, err := readUint(txn, systemCountKey())
		if err != nil {
			return err
		}
		if err = txn.Set(systemKey(count), []byte(body)); err != nil {
			return err
		}
		return writeUint(txn, systemCountKey(), count+1)
	})
}

func (s SystemRepository) List() ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(prefixSystem)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				out = append(out, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

var _ ISystemRepository = SystemRepository{}
