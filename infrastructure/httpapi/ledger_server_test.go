package httpapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"ledger-lab/repositories"
	"ledger-lab/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	service := services.NewLedgerService(
		log,
		repositories.NewMessageRepository(db, log),
		repositories.NewGroupRepository(db, log),
		repositories.NewSystemRepository(db, log),
		repositories.NewBalanceRepository(db, log),
		"root",
		nil,
		false,
	)
	server := httptest.NewServer(NewLedgerServer(log, service).Routes())
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path, principal string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	request, err := http.NewRequest(method, server.URL+path, &buf)
	require.NoError(t, err)
	if principal != "" {
		request.Header.Set(PrincipalHeader, principal)
	}
	response, err := server.Client().Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func decodeBody[T any](t *testing.T, response *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(response.Body).Decode(&out))
	return out
}

func Test_Send_And_List_Messages_Over_HTTP(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/messages", "alice", map[string]string{
		"receiver": "bob",
		"body":     "hello over http",
	})
	req.Equal(http.StatusCreated, response.StatusCode)

	response = doRequest(t, server, http.MethodGet, "/v1/messages/received", "bob", nil)
	req.Equal(http.StatusOK, response.StatusCode)

	messages := decodeBody[[]messageResponse](t, response)
	req.Len(messages, 1)
	req.Equal("alice", messages[0].Sender)
	req.Equal("hello over http", messages[0].Body)
}

func Test_Requests_Without_A_Principal_Are_Unauthorized(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/messages", "", map[string]string{
		"receiver": "bob",
		"body":     "anonymous",
	})
	req.Equal(http.StatusUnauthorized, response.StatusCode)

	body := decodeBody[map[string]string](t, response)
	req.Contains(body["error"], PrincipalHeader)
}

func Test_Unknown_Group_Maps_To_Not_Found(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/groups/5/messages", "alice", map[string]string{
		"body": "lost",
	})
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func Test_System_Messages_From_Non_Admin_Are_Forbidden(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/system/messages", "alice", map[string]string{
		"body": "i am root",
	})
	req.Equal(http.StatusForbidden, response.StatusCode)

	response = doRequest(t, server, http.MethodPost, "/v1/system/messages", "root", map[string]string{
		"body": "maintenance tonight",
	})
	req.Equal(http.StatusCreated, response.StatusCode)

	response = doRequest(t, server, http.MethodGet, "/v1/system/messages", "alice", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal([]string{"maintenance tonight"}, decodeBody[[]string](t, response))
}

func Test_Insufficient_Transfer_Maps_To_Conflict(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/wallet/deposits", "alice", map[string]uint64{
		"amount": 50,
	})
	req.Equal(http.StatusCreated, response.StatusCode)

	response = doRequest(t, server, http.MethodPost, "/v1/wallet/transfers", "alice", map[string]any{
		"to":     "bob",
		"amount": 70,
	})
	req.Equal(http.StatusConflict, response.StatusCode)

	response = doRequest(t, server, http.MethodGet, "/v1/balances/alice", "alice", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal(uint64(50), decodeBody[map[string]uint64](t, response)["balance"])
}

func Test_Group_Roundtrip_Over_HTTP(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodPost, "/v1/groups", "alice", map[string]any{
		"name":    "devs",
		"members": []string{"bob", "clara"},
	})
	req.Equal(http.StatusCreated, response.StatusCode)
	created := decodeBody[map[string]uint64](t, response)

	response = doRequest(t, server, http.MethodGet, "/v1/groups/0", "alice", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	group := decodeBody[map[string]any](t, response)
	req.Equal("devs", group["name"])
	req.Equal(float64(created["group_id"]), group["id"])

	response = doRequest(t, server, http.MethodGet, "/v1/groups/count", "alice", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal(uint64(1), decodeBody[map[string]uint64](t, response)["count"])
}

func Test_Invalid_Path_Index_Is_A_Bad_Request(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	response := doRequest(t, server, http.MethodDelete, "/v1/messages/sent/nope", "alice", nil)
	req.Equal(http.StatusBadRequest, response.StatusCode)
}
