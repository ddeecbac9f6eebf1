package repositories

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"ledger-lab/errors"
)

func Test_Unknown_Principal_Has_Zero_Balance(t *testing.T) {
	req := require.New(t)
	repository := NewBalanceRepository(newTestDB(t), slog.Default())

	balance, err := repository.Get("nobody")
	req.NoError(err)
	req.Equal(uint64(0), balance)
}

func Test_Add_Accumulates(t *testing.T) {
	req := require.New(t)
	repository := NewBalanceRepository(newTestDB(t), slog.Default())

	req.NoError(repository.Add("alice", 40))
	req.NoError(repository.Add("alice", 2))

	balance, err := repository.Get("alice")
	req.NoError(err)
	req.Equal(uint64(42), balance)
}

func Test_Sub_Debits_Down_To_Zero(t *testing.T) {
	req := require.New(t)
	repository := NewBalanceRepository(newTestDB(t), slog.Default())

	req.NoError(repository.Add("alice", 100))
	req.NoError(repository.Sub("alice", 100))

	balance, err := repository.Get("alice")
	req.NoError(err)
	req.Equal(uint64(0), balance)
}

func Test_Sub_Fails_When_Insufficient_And_Leaves_Balance_Unchanged(t *testing.T) {
	req := require.New(t)
	repository := NewBalanceRepository(newTestDB(t), slog.Default())

	req.NoError(repository.Add("alice", 50))

	err := repository.Sub("alice", 70)
	req.ErrorIs(err, errors.ErrInsufficientBalance)
	req.ErrorContains(err, "have 50, want 70")

	balance, err := repository.Get("alice")
	req.NoError(err)
	req.Equal(uint64(50), balance)
}
