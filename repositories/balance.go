//go:generate go run go.uber.org/mock/mockgen -source=balance.go -destination=../mocks/mock_balance_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"ledger-lab/errors"
)

type IBalanceRepository interface {
	Get(principal string) (uint64, error)
	Add(principal string, amount uint64) error
	Sub(principal string, amount uint64) error
}

// BalanceRepository keeps one unsigned balance per principal.
// Each mutation reads and writes inside a single transaction; the
// serialization of whole transfers is the service's concern.
type BalanceRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBalanceRepository(db *badger.DB, log *slog.Logger) BalanceRepository {
	return BalanceRepository{db: db, log: log}
}

// Get returns zero for principals that never held funds.
func (b BalanceRepository) Get(principal string) (uint64, error) {
	var balance uint64
	err := b.db.View(func(txn *badger.Txn) error {
		n, err := readUint(txn, balanceKey(principal))
		balance = n
		return err
	})
	return balance, err
}

func (b BalanceRepository) Add(principal string, amount uint64) error {
	return runUpdate(b.db, func(txn *badger.Txn) error {
		balance, err := readUint(txn, balanceKey(principal))
		if err != nil {
			return err
		}
		return writeUint(txn, balanceKey(principal), balance+amount)
	})
}

// Sub debits the principal, failing with ErrInsufficientBalance when the
// check does not pass. Check and debit share one transaction.
func (b BalanceRepository) Sub(principal string, amount uint64) error {
	return runUpdate(b.db, func(txn *badger.Txn) error {
		balance, err := readUint(txn, balanceKey(principal))
		if err != nil {
			return err
		}
		if balance < amount {
			return fmt.Errorf("%w: have %d, want %d", errors.ErrInsufficientBalance, balance, amount)
		}
		return writeUint(txn, balanceKey(principal), balance-amount)
	})
}

var _ IBalanceRepository = BalanceRepository{}
