package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error returned by the chat service to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbiddenSender):
		return http.StatusForbidden
	case errors.Is(err, ErrUnknownConversation):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrContentTooLong):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
