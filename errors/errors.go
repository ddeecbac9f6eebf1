package errors

import "fmt"

var (
	ErrMessageNotFound     = fmt.Errorf("message not found")
	ErrGroupNotFound       = fmt.Errorf("group not found")
	ErrNotSender           = fmt.Errorf("caller is not the sender")
	ErrEditWindowExpired   = fmt.Errorf("edit window expired")
	ErrNotAdmin            = fmt.Errorf("caller is not the admin")
	ErrZeroAmount          = fmt.Errorf("amount must be positive")
	ErrInvalidRecipient    = fmt.Errorf("recipient must not be the null principal")
	ErrInsufficientBalance = fmt.Errorf("insufficient balance")
	ErrNoValidMessages     = fmt.Errorf("no valid messages")
	ErrTransferInProgress  = fmt.Errorf("a transfer is already in progress in this call")
)
