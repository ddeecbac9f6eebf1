//go:generate go run go.uber.org/mock/mockgen -source=ledger_service.go -destination=../mocks/mock_ledger_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"ledger-lab/contract"
	"ledger-lab/domain"
	"ledger-lab/domain/event"
	"ledger-lab/domain/ledger"
	"ledger-lab/errors"
	"ledger-lab/repositories"
)

type ILedgerService interface {
	SendMessage(ctx context.Context, cmd ledger.SendMessageCommand) error
	SendMessageToMultipleReceivers(ctx context.Context, cmd ledger.BroadcastCommand) error
	SendExpirableMessage(ctx context.Context, cmd ledger.SendExpirableCommand) error
	CreateGroup(ctx context.Context, cmd ledger.CreateGroupCommand) (domain.GroupID, error)
	SendMessageToGroup(ctx context.Context, cmd ledger.GroupMessageCommand) error
	ForwardMessage(ctx context.Context, cmd ledger.ForwardCommand) error
	DeleteSentMessage(ctx context.Context, cmd ledger.DeleteCommand) error
	DeleteReceivedMessage(ctx context.Context, cmd ledger.DeleteCommand) error
	EditMessage(ctx context.Context, cmd ledger.EditCommand) error
	SendSystemMessage(ctx context.Context, cmd ledger.SystemMessageCommand) error
	Deposit(ctx context.Context, cmd ledger.DepositCommand) error
	SendFunds(ctx context.Context, cmd ledger.TransferCommand) error

	GetSentMessages(principal domain.Principal) ([]domain.Message, error)
	GetReceivedMessages(principal domain.Principal) ([]domain.Message, error)
	GetSentExpirableMessages(principal domain.Principal) ([]domain.Message, error)
	GetReceivedExpirableMessages(principal domain.Principal) ([]domain.Message, error)
	GetSystemMessages() ([]string, error)
	GetGroup(id domain.GroupID) (domain.Group, error)
	GetGroupsCount() (uint64, error)
	GetBalance(principal domain.Principal) (uint64, error)
	GetAdmin() domain.Principal
}

// TransferFunc performs the external value movement of a transfer. It may
// invoke arbitrary code on the recipient side; the service debits before
// calling it and credits only after it succeeds.
type TransferFunc func(ctx context.Context, from, to domain.Principal, amount uint64) error

// LedgerService is the single facade over the message and balance stores.
// It owns authorization, validation, balance serialization, and event
// emission; it holds no domain state of its own.
type LedgerService struct {
	log      *slog.Logger
	messages repositories.IMessageRepository
	groups   repositories.IGroupRepository
	system   repositories.ISystemRepository
	balances repositories.IBalanceRepository
	admin    domain.Principal
	move     TransferFunc

	// compatEmptyExpirableError surfaces an empty expirable read as an
	// error, for callers that still switch on ErrNoValidMessages.
	compatEmptyExpirableError bool

	validate *validator.Validate
	now      func() time.Time
	sinks    []contract.EventSink

	mu    sync.Mutex // guards locks
	locks map[domain.Principal]*sync.Mutex
}

func NewLedgerService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	groups repositories.IGroupRepository,
	system repositories.ISystemRepository,
	balances repositories.IBalanceRepository,
	admin domain.Principal,
	move TransferFunc,
	compatEmptyExpirableError bool,
) *LedgerService {
	if move == nil {
		// Internal moves need no external settlement step.
		move = func(context.Context, domain.Principal, domain.Principal, uint64) error {
			return nil
		}
	}
	return &LedgerService{
		log:                       log,
		messages:                  messages,
		groups:                    groups,
		system:                    system,
		balances:                  balances,
		admin:                     admin,
		move:                      move,
		compatEmptyExpirableError: compatEmptyExpirableError,
		validate:                  validator.New(),
		now:                       func() time.Time { return time.Now().UTC() },
		locks:                     make(map[domain.Principal]*sync.Mutex),
	}
}

// AddSinks registers event consumers. Not safe to call once the service
// is serving; wire sinks at construction time.
func (s *LedgerService) AddSinks(sinks ...contract.EventSink) {
	s.sinks = append(s.sinks, sinks...)
}

func (s *LedgerService) emit(ctx context.Context, e event.LedgerEvent) {
	for _, sink := range s.sinks {
		if err := sink.Consume(ctx, e); err != nil {
			s.log.Warn("Event sink failed",
				"event", contract.EventName(e), "err", err)
		}
	}
}

// SendMessage appends identical copies to the sender's sent log and the
// receiver's received log. The receiver is deliberately not validated.
func (s *LedgerService) SendMessage(ctx context.Context, cmd ledger.SendMessageCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	msg := s.newDiskMessage(cmd.Sender, cmd.Receiver, cmd.Body)
	if err := s.messages.Append(msg); err != nil {
		return err
	}
	s.emit(ctx, event.MessageSent{
		ID:       msg.ID,
		Sender:   cmd.Sender,
		Receiver: cmd.Receiver,
		Body:     cmd.Body,
		At:       time.Unix(0, msg.SentAt).UTC(),
	})
	return nil
}

// SendMessageToMultipleReceivers fans one body out in the caller-supplied
// order. All appends commit together or not at all. An empty receiver
// list is a no-op.
func (s *LedgerService) SendMessageToMultipleReceivers(ctx context.Context, cmd ledger.BroadcastCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	entries := lo.Map(cmd.Receivers, func(receiver domain.Principal, _ int) repositories.DiskMessage {
		return s.newDiskMessage(cmd.Sender, receiver, cmd.Body)
	})
	if err := s.messages.Append(entries...); err != nil {
		return err
	}
	for _, entry := range entries {
		s.emit(ctx, event.MessageSent{
			ID:       entry.ID,
			Sender:   cmd.Sender,
			Receiver: domain.Principal(entry.Receiver),
			Body:     cmd.Body,
			At:       time.Unix(0, entry.SentAt).UTC(),
		})
	}
	return nil
}

// SendExpirableMessage stores a message visible until now+TTL. A zero TTL
// is accepted and produces an entry that is already expired.
func (s *LedgerService) SendExpirableMessage(ctx context.Context, cmd ledger.SendExpirableCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	now := s.now()
	expiresAt := now.Add(cmd.TTL)
	msg := repositories.DiskExpirableMessage{
		DiskMessage: s.newDiskMessage(cmd.Sender, cmd.Receiver, cmd.Body),
		ExpiresAt:   expiresAt.UnixNano(),
	}
	if err := s.messages.AppendExpirable(msg); err != nil {
		return err
	}
	s.emit(ctx, event.ExpirableMessageSent{
		ID:        msg.ID,
		Sender:    cmd.Sender,
		Receiver:  cmd.Receiver,
		Body:      cmd.Body,
		At:        time.Unix(0, msg.SentAt).UTC(),
		ExpiresAt: expiresAt,
	})
	return nil
}

// CreateGroup stores the member list as given, duplicates included, and
// returns the next dense group id.
func (s *LedgerService) CreateGroup(ctx context.Context, cmd ledger.CreateGroupCommand) (domain.GroupID, error) {
	if err := s.validate.Struct(cmd); err != nil {
		return 0, err
	}
	members := lo.Map(cmd.Members, func(p domain.Principal, _ int) string {
		return string(p)
	})
	createdAt := s.now()
	id, err := s.groups.Create(cmd.Name, members, createdAt)
	if err != nil {
		return 0, err
	}
	s.emit(ctx, event.GroupCreated{
		Group:   domain.GroupID(id),
		Name:    cmd.Name,
		Creator: cmd.Creator,
		Members: len(cmd.Members),
		At:      createdAt,
	})
	return domain.GroupID(id), nil
}

// SendMessageToGroup fans out to every member in storage order. A group id
// that was never assigned fails with ErrGroupNotFound before anything is
// appended.
func (s *LedgerService) SendMessageToGroup(ctx context.Context, cmd ledger.GroupMessageCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	group, err := s.groups.Get(uint64(cmd.Group))
	if err != nil {
		return err
	}
	entries := lo.Map(group.Members, func(member string, _ int) repositories.DiskMessage {
		return s.newDiskMessage(cmd.Sender, domain.Principal(member), cmd.Body)
	})
	if err = s.messages.Append(entries...); err != nil {
		return err
	}
	s.emit(ctx, event.GroupMessageSent{
		Group:   cmd.Group,
		Sender:  cmd.Sender,
		Body:    cmd.Body,
		Members: len(group.Members),
		At:      s.now(),
	})
	return nil
}

// ForwardMessage copies only the body of the referenced sent message into
// a fresh message from the forwarder, with a fresh timestamp. The
// reference is by index; out of bounds fails with ErrMessageNotFound.
func (s *LedgerService) ForwardMessage(ctx context.Context, cmd ledger.ForwardCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	original, err := s.messages.GetSent(string(cmd.OriginalSender), cmd.OriginalIndex)
	if err != nil {
		return err
	}
	msg := s.newDiskMessage(cmd.Forwarder, cmd.NewReceiver, original.Body)
	if err = s.messages.Append(msg); err != nil {
		return err
	}
	s.emit(ctx, event.MessageForwarded{
		ID:             msg.ID,
		Forwarder:      cmd.Forwarder,
		OriginalSender: cmd.OriginalSender,
		OriginalIndex:  cmd.OriginalIndex,
		NewReceiver:    cmd.NewReceiver,
		At:             time.Unix(0, msg.SentAt).UTC(),
	})
	return nil
}

// DeleteSentMessage tombstones one slot of the caller's sent log.
// The slot keeps its index; the log length is unchanged.
func (s *LedgerService) DeleteSentMessage(ctx context.Context, cmd ledger.DeleteCommand) error {
	return s.deleteMessage(ctx, cmd, domain.BoxSent)
}

// DeleteReceivedMessage tombstones one slot of the caller's received log.
func (s *LedgerService) DeleteReceivedMessage(ctx context.Context, cmd ledger.DeleteCommand) error {
	return s.deleteMessage(ctx, cmd, domain.BoxReceived)
}

func (s *LedgerService) deleteMessage(ctx context.Context, cmd ledger.DeleteCommand, box domain.Box) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	tombstone := func(repositories.DiskMessage) (repositories.DiskMessage, error) {
		return repositories.DiskMessage{Deleted: true}, nil
	}
	var err error
	if box == domain.BoxReceived {
		err = s.messages.UpdateReceived(string(cmd.Caller), cmd.Index, tombstone)
	} else {
		err = s.messages.UpdateSent(string(cmd.Caller), cmd.Index, tombstone)
	}
	if err != nil {
		return err
	}
	s.emit(ctx, event.MessageDeleted{
		Owner: cmd.Caller,
		Box:   box,
		Index: cmd.Index,
		At:    s.now(),
	})
	return nil
}

// EditMessage replaces the body of a sent message in place. Only the
// original sender may edit, only within the edit window, and a tombstoned
// slot has no sender anymore. SentAt is unchanged.
func (s *LedgerService) EditMessage(ctx context.Context, cmd ledger.EditCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	err := s.messages.UpdateSent(string(cmd.Caller), cmd.Index, func(msg repositories.DiskMessage) (repositories.DiskMessage, error) {
		if msg.Deleted || msg.Sender != string(cmd.Caller) {
			return msg, errors.ErrNotSender
		}
		if !repositories.ToMessage(msg).WithinEditWindow(s.now()) {
			return msg, errors.ErrEditWindowExpired
		}
		msg.Body = cmd.NewBody
		return msg, nil
	})
	if err != nil {
		return err
	}
	s.emit(ctx, event.MessageEdited{
		Owner: cmd.Caller,
		Index: cmd.Index,
		At:    s.now(),
	})
	return nil
}

// SendSystemMessage appends to the global broadcast log. Admin only.
func (s *LedgerService) SendSystemMessage(ctx context.Context, cmd ledger.SystemMessageCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	if cmd.Caller != s.admin {
		return errors.ErrNotAdmin
	}
	if err := s.system.Append(cmd.Body); err != nil {
		return err
	}
	s.emit(ctx, event.SystemMessagePosted{
		Admin: cmd.Caller,
		Body:  cmd.Body,
		At:    s.now(),
	})
	return nil
}

// Deposit credits the caller. The account lock is held so a concurrent
// transfer cannot interleave, and a movement callback cannot re-enter.
func (s *LedgerService) Deposit(ctx context.Context, cmd ledger.DepositCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	if cmd.Amount == 0 {
		return errors.ErrZeroAmount
	}
	if err := guardReentry(ctx); err != nil {
		return err
	}
	lock := s.accountLock(cmd.Caller)
	lock.Lock()
	defer lock.Unlock()

	if err := s.balances.Add(string(cmd.Caller), cmd.Amount); err != nil {
		return err
	}
	s.emit(ctx, event.FundsDeposited{
		Account: cmd.Caller,
		Amount:  cmd.Amount,
		At:      s.now(),
	})
	return nil
}

// SendFunds moves funds between two principals. The sender is debited
// before the external movement runs and the recipient is credited only
// after it succeeds; a failed movement re-credits the sender so every
// failure leaves balances unchanged. Both account locks are held across
// the whole sequence, acquired in principal order to avoid deadlock.
// The context handed to the movement callback carries a call-in-progress
// marker: any attempt to re-enter SendFunds or Deposit from inside the
// callback fails with ErrTransferInProgress instead of deadlocking.
func (s *LedgerService) SendFunds(ctx context.Context, cmd ledger.TransferCommand) error {
	if err := s.validate.Struct(cmd); err != nil {
		return err
	}
	if cmd.Amount == 0 {
		return errors.ErrZeroAmount
	}
	if cmd.To == domain.Nobody {
		return errors.ErrInvalidRecipient
	}
	if err := guardReentry(ctx); err != nil {
		return err
	}

	first, second := cmd.From, cmd.To
	if second < first {
		first, second = second, first
	}
	firstLock := s.accountLock(first)
	firstLock.Lock()
	defer firstLock.Unlock()
	if first != second {
		secondLock := s.accountLock(second)
		secondLock.Lock()
		defer secondLock.Unlock()
	}

	if err := s.balances.Sub(string(cmd.From), cmd.Amount); err != nil {
		return err
	}
	if err := s.move(markInProgress(ctx), cmd.From, cmd.To, cmd.Amount); err != nil {
		if undoErr := s.balances.Add(string(cmd.From), cmd.Amount); undoErr != nil {
			s.log.Error("Failed to re-credit sender after aborted movement",
				"from", cmd.From, "amount", cmd.Amount, "err", undoErr)
		}
		return fmt.Errorf("value movement failed: %w", err)
	}
	if err := s.balances.Add(string(cmd.To), cmd.Amount); err != nil {
		return err
	}
	s.emit(ctx, event.FundsTransferred{
		From:   cmd.From,
		To:     cmd.To,
		Amount: cmd.Amount,
		At:     s.now(),
	})
	return nil
}

// GetSentMessages returns the full sent log in storage order, tombstones
// included, so indexes seen by the caller match storage slots.
func (s *LedgerService) GetSentMessages(principal domain.Principal) ([]domain.Message, error) {
	entries, err := s.messages.ListSent(string(principal))
	if err != nil {
		return nil, err
	}
	return lo.Map(entries, func(msg repositories.DiskMessage, _ int) domain.Message {
		return repositories.ToMessage(msg)
	}), nil
}

func (s *LedgerService) GetReceivedMessages(principal domain.Principal) ([]domain.Message, error) {
	entries, err := s.messages.ListReceived(string(principal))
	if err != nil {
		return nil, err
	}
	return lo.Map(entries, func(msg repositories.DiskMessage, _ int) domain.Message {
		return repositories.ToMessage(msg)
	}), nil
}

func (s *LedgerService) GetSentExpirableMessages(principal domain.Principal) ([]domain.Message, error) {
	return s.validExpirable(principal, domain.BoxSent)
}

func (s *LedgerService) GetReceivedExpirableMessages(principal domain.Principal) ([]domain.Message, error) {
	return s.validExpirable(principal, domain.BoxReceived)
}

// validExpirable filters a principal's expirable log down to entries still
// visible at the read instant. An empty result is an empty slice unless
// the compatibility switch turns it into ErrNoValidMessages.
func (s *LedgerService) validExpirable(principal domain.Principal, box domain.Box) ([]domain.Message, error) {
	entries, err := s.messages.ListExpirable(string(principal), box)
	if err != nil {
		return nil, err
	}
	now := s.now()
	valid := lo.FilterMap(entries, func(msg repositories.DiskExpirableMessage, _ int) (domain.Message, bool) {
		expirable := repositories.ToExpirableMessage(msg)
		return expirable.Message, expirable.Valid(now)
	})
	if len(valid) == 0 && s.compatEmptyExpirableError {
		return nil, errors.ErrNoValidMessages
	}
	return valid, nil
}

func (s *LedgerService) GetSystemMessages() ([]string, error) {
	return s.system.List()
}

func (s *LedgerService) GetGroup(id domain.GroupID) (domain.Group, error) {
	group, err := s.groups.Get(uint64(id))
	if err != nil {
		return domain.Group{}, err
	}
	return domain.Group{
		ID:   domain.GroupID(group.ID),
		Name: group.Name,
		Members: lo.Map(group.Members, func(member string, _ int) domain.Principal {
			return domain.Principal(member)
		}),
	}, nil
}

func (s *LedgerService) GetGroupsCount() (uint64, error) {
	return s.groups.Count()
}

func (s *LedgerService) GetBalance(principal domain.Principal) (uint64, error) {
	return s.balances.Get(string(principal))
}

func (s *LedgerService) GetAdmin() domain.Principal {
	return s.admin
}

func (s *LedgerService) newDiskMessage(sender, receiver domain.Principal, body string) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:       uuid.New(),
		Sender:   string(sender),
		Receiver: string(receiver),
		Body:     body,
		SentAt:   s.now().UnixNano(),
	}
}

func (s *LedgerService) accountLock(principal domain.Principal) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[principal]; !ok {
		s.locks[principal] = &sync.Mutex{}
	}
	return s.locks[principal]
}

// inProgressKey marks a context as belonging to an open balance critical
// section. The marker rides the context given to the movement callback,
// so the guard trips only for the same call chain, never for unrelated
// concurrent callers (those serialize on the account locks instead).
type inProgressKey struct{}

func markInProgress(ctx context.Context) context.Context {
	return context.WithValue(ctx, inProgressKey{}, true)
}

func guardReentry(ctx context.Context) error {
	if ctx.Value(inProgressKey{}) != nil {
		return errors.ErrTransferInProgress
	}
	return nil
}

var _ ILedgerService = (*LedgerService)(nil)
