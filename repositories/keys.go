package repositories

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// Key namespaces. Log entries use a 19-digit zero-padded index so the
// lexicographical order of keys equals insertion order, and so that one
// slot can be addressed and rewritten without touching its neighbours.
const (
	prefixSent        = "msg:sent:"
	prefixReceived    = "msg:rcv:"
	prefixExpSent     = "exp:sent:"
	prefixExpReceived = "exp:rcv:"
	prefixGroup       = "grp:"
	prefixSystem      = "sys:"
	prefixBalance     = "bal:"
	prefixCount       = "cnt:"
)

// keyPrincipal escapes a principal before it is spliced into a
// colon-delimited key. Principals arrive unconstrained from the boundary;
// an escaped principal never contains the delimiter, so one principal
// cannot address or scan another principal's log.
func keyPrincipal(principal string) string {
	return url.QueryEscape(principal)
}

func logKey(prefix, principal string, index uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%019d", prefix, keyPrincipal(principal), index))
}

func logPrefix(prefix, principal string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefix, keyPrincipal(principal)))
}

func counterKey(prefix, principal string) []byte {
	return []byte(fmt.Sprintf("%s%s%s", prefixCount, prefix, keyPrincipal(principal)))
}

func groupKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d", prefixGroup, id))
}

func groupCountKey() []byte {
	return []byte(prefixCount + prefixGroup)
}

func systemKey(index uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d", prefixSystem, index))
}

func systemCountKey() []byte {
	return []byte(prefixCount + prefixSystem)
}

func balanceKey(principal string) []byte {
	return []byte(prefixBalance + keyPrincipal(principal))
}

// runUpdate wraps db.Update with a retry on optimistic-conflict aborts.
// Badger detects conflicting transactions but does not retry them itself;
// two appends bumping the same log counter must both land, not surface
// ErrConflict to the caller.
func runUpdate(db *badger.DB, fn func(txn *badger.Txn) error) error {
	for {
		err := db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// readUint reads a decimal uint64 value, treating a missing key as zero.
// Counters and balances share this representation to stay readable in
// the inspect tooling.
func readUint(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n uint64
	err = item.Value(func(val []byte) error {
		parsed, parseErr := strconv.ParseUint(string(val), 10, 64)
		n = parsed
		return parseErr
	})
	return n, err
}

func writeUint(txn *badger.Txn, key []byte, n uint64) error {
	return txn.Set(key, []byte(strconv.FormatUint(n, 10)))
}
