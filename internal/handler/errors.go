package handler

import (
	"errors"
	"net/http"

	"cardmarket/internal/model"
	"cardmarket/pkg/apierror"
	"cardmarket/pkg/response"
)

// toAPIError maps domain errors to their HTTP status, keeping err's message.
// Anything unrecognized becomes an internal error that hides err.
func toAPIError(err error) *apierror.Error {
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, model.ErrNotFound):
		return apierror.NotFound(err.Error())
	case errors.Is(err, model.ErrAlreadyClaimed), errors.Is(err, model.ErrNotClaimed):
		return apierror.Conflict(err.Error())
	case errors.Is(err, model.ErrPermission):
		return apierror.Forbidden(err.Error())
	case errors.Is(err, model.ErrInvalidInput):
		return apierror.ValidationError(err.Error())
	case errors.Is(err, model.ErrExternalUnavailable):
		return apierror.ServiceUnavailable(err.Error())
	}
	return apierror.FromError(err)
}

func respondError(w http.ResponseWriter, err error) {
	response.Error(w, toAPIError(err))
}
