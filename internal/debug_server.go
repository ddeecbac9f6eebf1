package internal

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key    string
	Kind   string
	Detail string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves a read-only HTML view over the raw store,
// filterable by key prefix. Development tooling only; it bypasses the
// service layer on purpose.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		rows, err := scan(db, prefix, mapper)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data := PageData{Prefix: prefix, Items: rows}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}
		if err := tmpl.Execute(w, data); err != nil {
			log.Warn("Failed to render inspect page", "err", err)
		}
	})

	go func() {
		address := fmt.Sprintf(":%d", port)
		log.Info("Debug server listening", "address", address, "endpoint", endpoint)
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Error("Debug server stopped", "err", err)
		}
	}()
}

func scan(db *badger.DB, prefix string, mapper RowMapper) ([]InspectRow, error) {
	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(key, val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// DefaultMapper classifies a row by its key namespace and pretty-prints
// JSON values where the namespace stores them.
func DefaultMapper(key string, val []byte) InspectRow {
	kind := "RAW"
	switch {
	case strings.HasPrefix(key, "msg:"):
		kind = "MESSAGE"
	case strings.HasPrefix(key, "exp:"):
		kind = "EXPIRABLE"
	case strings.HasPrefix(key, "grp:"):
		kind = "GROUP"
	case strings.HasPrefix(key, "sys:"):
		kind = "SYSTEM"
	case strings.HasPrefix(key, "bal:"):
		kind = "BALANCE"
	case strings.HasPrefix(key, "cnt:"):
		kind = "COUNTER"
	}

	detail := string(val)
	if strings.HasPrefix(detail, "{") && json.Valid(val) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, val, "", " "); err == nil {
			detail = indented.String()
		}
	}
	return InspectRow{Key: key, Kind: kind, Detail: detail}
}
