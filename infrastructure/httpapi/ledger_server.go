// Package httpapi exposes the ledger service over JSON/HTTP.
// The caller principal is asserted by the X-Principal header; verifying
// that identity is the job of whatever sits in front of this process.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"ledger-lab/domain"
	"ledger-lab/domain/ledger"
	"ledger-lab/errors"
	"ledger-lab/services"
)

// PrincipalHeader carries the authenticated caller identity.
const PrincipalHeader = "X-Principal"

type LedgerServer struct {
	log     *slog.Logger
	service services.ILedgerService
}

func NewLedgerServer(log *slog.Logger, service services.ILedgerService) *LedgerServer {
	return &LedgerServer{log: log, service: service}
}

// Routes registers one route per ledger operation.
func (s *LedgerServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/messages", s.sendMessage)
	mux.HandleFunc("POST /v1/messages/broadcast", s.sendBroadcast)
	mux.HandleFunc("POST /v1/messages/expirable", s.sendExpirable)
	mux.HandleFunc("POST /v1/messages/forward", s.forwardMessage)
	mux.HandleFunc("GET /v1/messages/sent", s.listSent)
	mux.HandleFunc("GET /v1/messages/received", s.listReceived)
	mux.HandleFunc("GET /v1/messages/expirable/sent", s.listExpirableSent)
	mux.HandleFunc("GET /v1/messages/expirable/received", s.listExpirableReceived)
	mux.HandleFunc("DELETE /v1/messages/sent/{index}", s.deleteSent)
	mux.HandleFunc("DELETE /v1/messages/received/{index}", s.deleteReceived)
	mux.HandleFunc("PATCH /v1/messages/sent/{index}", s.editMessage)
	mux.HandleFunc("POST /v1/groups", s.createGroup)
	mux.HandleFunc("GET /v1/groups/count", s.groupsCount)
	mux.HandleFunc("GET /v1/groups/{id}", s.getGroup)
	mux.HandleFunc("POST /v1/groups/{id}/messages", s.sendToGroup)
	mux.HandleFunc("POST /v1/system/messages", s.sendSystemMessage)
	mux.HandleFunc("GET /v1/system/messages", s.listSystemMessages)
	mux.HandleFunc("GET /v1/admin", s.getAdmin)
	mux.HandleFunc("POST /v1/wallet/deposits", s.deposit)
	mux.HandleFunc("POST /v1/wallet/transfers", s.transfer)
	mux.HandleFunc("GET /v1/balances/{principal}", s.getBalance)
	return mux
}

type messageResponse struct {
	ID       string    `json:"id"`
	Sender   string    `json:"sender"`
	Receiver string    `json:"receiver"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
	Deleted  bool      `json:"deleted,omitempty"`
}

func toMessageResponse(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(msg domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:       msg.ID.String(),
			Sender:   string(msg.Sender),
			Receiver: string(msg.Receiver),
			Body:     msg.Body,
			SentAt:   msg.SentAt,
			Deleted:  msg.Deleted,
		}
	})
}

func (s *LedgerServer) sendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Receiver string `json:"receiver"`
		Body     string `json:"body"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendMessage(r.Context(), ledger.SendMessageCommand{
		Sender:   caller,
		Receiver: domain.Principal(req.Receiver),
		Body:     req.Body,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Receivers []string `json:"receivers"`
		Body      string   `json:"body"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendMessageToMultipleReceivers(r.Context(), ledger.BroadcastCommand{
		Sender: caller,
		Receivers: lo.Map(req.Receivers, func(p string, _ int) domain.Principal {
			return domain.Principal(p)
		}),
		Body: req.Body,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) sendExpirable(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Receiver   string `json:"receiver"`
		Body       string `json:"body"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendExpirableMessage(r.Context(), ledger.SendExpirableCommand{
		Sender:   caller,
		Receiver: domain.Principal(req.Receiver),
		Body:     req.Body,
		TTL:      time.Duration(req.TTLSeconds) * time.Second,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) forwardMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		OriginalSender string `json:"original_sender"`
		OriginalIndex  uint64 `json:"original_index"`
		NewReceiver    string `json:"new_receiver"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.ForwardMessage(r.Context(), ledger.ForwardCommand{
		Forwarder:      caller,
		OriginalSender: domain.Principal(req.OriginalSender),
		OriginalIndex:  req.OriginalIndex,
		NewReceiver:    domain.Principal(req.NewReceiver),
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) listSent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	messages, err := s.service.GetSentMessages(caller)
	s.respond(w, err, http.StatusOK, toMessageResponse(messages))
}

func (s *LedgerServer) listReceived(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	messages, err := s.service.GetReceivedMessages(caller)
	s.respond(w, err, http.StatusOK, toMessageResponse(messages))
}

func (s *LedgerServer) listExpirableSent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	messages, err := s.service.GetSentExpirableMessages(caller)
	s.respond(w, err, http.StatusOK, toMessageResponse(messages))
}

func (s *LedgerServer) listExpirableReceived(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	messages, err := s.service.GetReceivedExpirableMessages(caller)
	s.respond(w, err, http.StatusOK, toMessageResponse(messages))
}

func (s *LedgerServer) deleteSent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	index, ok := s.pathIndex(w, r, "index")
	if !ok {
		return
	}
	err := s.service.DeleteSentMessage(r.Context(), ledger.DeleteCommand{
		Caller: caller,
		Index:  index,
	})
	s.respond(w, err, http.StatusNoContent, nil)
}

func (s *LedgerServer) deleteReceived(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	index, ok := s.pathIndex(w, r, "index")
	if !ok {
		return
	}
	err := s.service.DeleteReceivedMessage(r.Context(), ledger.DeleteCommand{
		Caller: caller,
		Index:  index,
	})
	s.respond(w, err, http.StatusNoContent, nil)
}

func (s *LedgerServer) editMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	index, ok := s.pathIndex(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.EditMessage(r.Context(), ledger.EditCommand{
		Caller:  caller,
		Index:   index,
		NewBody: req.Body,
	})
	s.respond(w, err, http.StatusOK, nil)
}

func (s *LedgerServer) createGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.service.CreateGroup(r.Context(), ledger.CreateGroupCommand{
		Creator: caller,
		Name:    req.Name,
		Members: lo.Map(req.Members, func(p string, _ int) domain.Principal {
			return domain.Principal(p)
		}),
	})
	s.respond(w, err, http.StatusCreated, map[string]uint64{"group_id": uint64(id)})
}

func (s *LedgerServer) groupsCount(w http.ResponseWriter, _ *http.Request) {
	count, err := s.service.GetGroupsCount()
	s.respond(w, err, http.StatusOK, map[string]uint64{"count": count})
}

func (s *LedgerServer) getGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIndex(w, r, "id")
	if !ok {
		return
	}
	group, err := s.service.GetGroup(domain.GroupID(id))
	s.respond(w, err, http.StatusOK, map[string]any{
		"id":   uint64(group.ID),
		"name": group.Name,
		"members": lo.Map(group.Members, func(p domain.Principal, _ int) string {
			return string(p)
		}),
	})
}

func (s *LedgerServer) sendToGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	id, ok := s.pathIndex(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendMessageToGroup(r.Context(), ledger.GroupMessageCommand{
		Sender: caller,
		Group:  domain.GroupID(id),
		Body:   req.Body,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) sendSystemMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendSystemMessage(r.Context(), ledger.SystemMessageCommand{
		Caller: caller,
		Body:   req.Body,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) listSystemMessages(w http.ResponseWriter, _ *http.Request) {
	messages, err := s.service.GetSystemMessages()
	s.respond(w, err, http.StatusOK, messages)
}

func (s *LedgerServer) getAdmin(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, nil, http.StatusOK, map[string]string{
		"admin": string(s.service.GetAdmin()),
	})
}

func (s *LedgerServer) deposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.Deposit(r.Context(), ledger.DepositCommand{
		Caller: caller,
		Amount: req.Amount,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	err := s.service.SendFunds(r.Context(), ledger.TransferCommand{
		From:   caller,
		To:     domain.Principal(req.To),
		Amount: req.Amount,
	})
	s.respond(w, err, http.StatusCreated, nil)
}

func (s *LedgerServer) getBalance(w http.ResponseWriter, r *http.Request) {
	principal := r.PathValue("principal")
	balance, err := s.service.GetBalance(domain.Principal(principal))
	s.respond(w, err, http.StatusOK, map[string]uint64{"balance": balance})
}

// caller extracts the boundary-asserted identity. Requests without one
// are rejected before they reach the service.
func (s *LedgerServer) caller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	principal := r.Header.Get(PrincipalHeader)
	if principal == "" {
		s.writeError(w, http.StatusUnauthorized, "missing "+PrincipalHeader+" header")
		return domain.Nobody, false
	}
	return domain.Principal(principal), true
}

func (s *LedgerServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *LedgerServer) pathIndex(w http.ResponseWriter, r *http.Request, name string) (uint64, bool) {
	value, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return value, true
}

func (s *LedgerServer) respond(w http.ResponseWriter, err error, status int, body any) {
	if err != nil {
		s.log.Debug("Request rejected", "err", err)
		s.writeError(w, errors.HTTPStatus(err), err.Error())
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		s.log.Warn("Failed to encode response", "err", encodeErr)
	}
}

func (s *LedgerServer) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
