package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorCode string

const (
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrConflict           ErrorCode = "CONFLICT"
	ErrBadRequest         ErrorCode = "BAD_REQUEST"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrDuplicate          ErrorCode = "DUPLICATE"
	ErrStoreWrite         ErrorCode = "STORE_WRITE"
	ErrFeatureUnavailable ErrorCode = "FEATURE_UNAVAILABLE"
	ErrNothingToPay       ErrorCode = "NOTHING_TO_PAY"
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
)

type APIError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code ErrorCode, message string, details interface{}) APIError {
	if details != nil {
		logrus.WithField("code", code).Error(details)
	}
	return APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewDuplicateError reports external order ids that were skipped because they were already applied.
func NewDuplicateError(ids []string) APIError {
	return APIError{
		Code:    ErrDuplicate,
		Message: fmt.Sprintf("%d sale(s) already imported", len(ids)),
		Details: ids,
	}
}

// NewStoreWriteError wraps a store failure, keeping the underlying message verbatim.
func NewStoreWriteError(message string, err error) APIError {
	return NewAPIError(ErrStoreWrite, fmt.Sprintf("%s: %v", message, err), err.Error())
}

// Is reports whether err is an APIError carrying code.
func Is(err error, code ErrorCode) bool {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func MapErrorToHTTPStatus(err error) int {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrConflict, ErrDuplicate:
			return http.StatusConflict
		case ErrInvalidInput, ErrBadRequest:
			return http.StatusBadRequest
		case ErrFeatureUnavailable:
			return http.StatusPreconditionFailed
		case ErrNothingToPay:
			return http.StatusUnprocessableEntity
		case ErrStoreWrite:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
