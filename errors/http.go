package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// HTTPStatus maps a service error to the status code the boundary returns.
// Unknown errors map to 500: the store failed, not the caller.
func HTTPStatus(err error) int {
	var invalid validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrMessageNotFound),
		stderrors.Is(err, ErrGroupNotFound),
		stderrors.Is(err, ErrNoValidMessages):
		return http.StatusNotFound
	case stderrors.Is(err, ErrNotAdmin),
		stderrors.Is(err, ErrNotSender),
		stderrors.Is(err, ErrEditWindowExpired):
		return http.StatusForbidden
	case stderrors.Is(err, ErrZeroAmount),
		stderrors.Is(err, ErrInvalidRecipient),
		stderrors.As(err, &invalid):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrInsufficientBalance),
		stderrors.Is(err, ErrTransferInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
