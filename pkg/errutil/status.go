package errutil

import "net/http"

// CoreStatus is a transport-neutral error category.
type CoreStatus string

const (
	StatusBadRequest       CoreStatus = "bad_request"
	StatusValidationFailed CoreStatus = "validation_failed"
	StatusUnauthorized     CoreStatus = "unauthorized"
	StatusForbidden        CoreStatus = "forbidden"
	StatusNotFound         CoreStatus = "not_found"
	StatusConflict         CoreStatus = "conflict"
	StatusTooManyRequests  CoreStatus = "too_many_requests"
	StatusTimeout          CoreStatus = "timeout"
	StatusInternal         CoreStatus = "internal"
	StatusNotImplemented   CoreStatus = "not_implemented"
	StatusBadGateway       CoreStatus = "bad_gateway"
	StatusUnknown          CoreStatus = "unknown"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsUserError reports whether the status is attributable to the caller rather
// than the system. Used to pick the right observability counter.
func (s CoreStatus) IsUserError() bool {
	switch s {
	case StatusBadRequest, StatusValidationFailed, StatusUnauthorized,
		StatusForbidden, StatusNotFound, StatusConflict, StatusTooManyRequests:
		return true
	default:
		return false
	}
}
