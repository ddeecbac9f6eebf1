package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledger-lab/errors"
)

func Test_Create_Assigns_Dense_Ids_From_Zero(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(newTestDB(t), slog.Default())

	first, err := repository.Create("devs", []string{"alice", "bob"}, time.Now().UTC())
	req.NoError(err)
	req.Equal(uint64(0), first)

	second, err := repository.Create("ops", []string{"clara"}, time.Now().UTC())
	req.NoError(err)
	req.Equal(uint64(1), second)

	count, err := repository.Count()
	req.NoError(err)
	req.Equal(uint64(2), count)
}

func Test_Get_Uses_Strict_Bounds(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(newTestDB(t), slog.Default())

	id, err := repository.Create("devs", []string{"alice"}, time.Now().UTC())
	req.NoError(err)

	group, err := repository.Get(id)
	req.NoError(err)
	req.Equal("devs", group.Name)

	// One past the last assigned id has never existed.
	_, err = repository.Get(id + 1)
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_Get_On_Empty_Registry_Fails(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(newTestDB(t), slog.Default())

	_, err := repository.Get(0)
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_Members_Keep_Order_And_Duplicates(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(newTestDB(t), slog.Default())

	members := []string{"bob", "alice", "bob", "alice"}
	id, err := repository.Create("echo chamber", members, time.Now().UTC())
	req.NoError(err)

	group, err := repository.Get(id)
	req.NoError(err)
	req.Equal(members, group.Members)
}

func Test_Create_Stores_The_Given_Creation_Instant(t *testing.T) {
	req := require.New(t)
	repository := NewGroupRepository(newTestDB(t), slog.Default())

	createdAt := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	id, err := repository.Create("devs", []string{"alice"}, createdAt)
	req.NoError(err)

	group, err := repository.Get(id)
	req.NoError(err)
	req.Equal(createdAt.UnixNano(), group.CreatedAt)
}
