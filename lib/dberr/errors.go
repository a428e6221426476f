package dberr

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ansel1/merry"
)

// --------------------------------------------------------------------------
// Status codes
// --------------------------------------------------------------------------

// HTTP status codes used by replicas and the gateway
const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusNoContent           = 204
	StatusNotModified         = 304
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusRequestTimeout      = 408
	StatusConflict            = 409
	StatusGone                = 410
	StatusPreconditionFailed  = 412
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

// SubStatus further qualifies a status code
type SubStatus int

const (
	SubStatusUnknown SubStatus = 0

	// 403
	SubStatusWriteForbidden          SubStatus = 3
	SubStatusDatabaseAccountNotFound SubStatus = 1008

	// 404
	SubStatusReadSessionNotAvailable SubStatus = 1002

	// 410
	SubStatusNameCacheIsStale             SubStatus = 1000
	SubStatusPartitionKeyRangeGone        SubStatus = 1002
	SubStatusCompletingSplit              SubStatus = 1007
	SubStatusCompletingPartitionMigration SubStatus = 1008
)

// Kind classifies errors for the retry machinery
type Kind int

const (
	KindInternal Kind = iota
	KindClient
	KindTransient
	KindTopology
	KindConsistency
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindTransient:
		return "transient"
	case KindTopology:
		return "topology"
	case KindConsistency:
		return "consistency"
	default:
		return "internal"
	}
}

// --------------------------------------------------------------------------
// Value keys
// --------------------------------------------------------------------------

type valueKey string

const (
	keyStatus        valueKey = "status"
	keySubStatus     valueKey = "subStatus"
	keyKind          valueKey = "kind"
	keyRetryAfter    valueKey = "retryAfter"
	keyRequestCharge valueKey = "requestCharge"
	keyHeaders       valueKey = "headers"
	keyCause         valueKey = "cause"
)

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------

// New creates an error with the given status and sub status. The kind is
// derived from the status pair.
func New(status int, sub SubStatus, msg string) error {
	return merry.WrapSkipping(errors.New(msg), 1).
		WithHTTPCode(status).
		WithValue(keyStatus, status).
		WithValue(keySubStatus, sub).
		WithValue(keyKind, classify(status, sub))
}

// Newf is like New with a format string
func Newf(status int, sub SubStatus, format string, args ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, args...), 1).
		WithHTTPCode(status).
		WithValue(keyStatus, status).
		WithValue(keySubStatus, sub).
		WithValue(keyKind, classify(status, sub))
}

// FromResponse creates an error from a failed replica or gateway response
func FromResponse(status int, headers map[string]string, msg string) error {
	sub := SubStatus(0)
	if v, err := strconv.Atoi(headers[HeaderSubStatus]); err == nil {
		sub = SubStatus(v)
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d/%d", status, sub)
	}
	e := merry.WrapSkipping(errors.New(msg), 1).
		WithHTTPCode(status).
		WithValue(keyStatus, status).
		WithValue(keySubStatus, sub).
		WithValue(keyKind, classify(status, sub)).
		WithValue(keyHeaders, copyHeaders(headers))
	if v, err := strconv.ParseInt(headers[HeaderRetryAfterMs], 10, 64); err == nil {
		e = e.WithValue(keyRetryAfter, time.Duration(v)*time.Millisecond)
	}
	if v, err := strconv.ParseFloat(headers[HeaderRequestCharge], 64); err == nil {
		e = e.WithValue(keyRequestCharge, v)
	}
	return e
}

// Client creates a caller contract violation that wraps one of the sentinel errors
func Client(sentinel error, format string, args ...interface{}) error {
	return merry.WrapSkipping(sentinel, 1).
		Appendf(format, args...).
		WithHTTPCode(StatusBadRequest).
		WithValue(keyStatus, StatusBadRequest).
		WithValue(keySubStatus, SubStatusUnknown).
		WithValue(keyKind, KindClient)
}

// WrapStatus wraps a sentinel error with a status pair; the kind is derived from it
func WrapStatus(sentinel error, status int, sub SubStatus, format string, args ...interface{}) error {
	return merry.WrapSkipping(sentinel, 1).
		Appendf(format, args...).
		WithHTTPCode(status).
		WithValue(keyStatus, status).
		WithValue(keySubStatus, sub).
		WithValue(keyKind, classify(status, sub))
}

// Gone creates a 410 error signalling a stale address
func Gone(msg string) error {
	return New(StatusGone, SubStatusUnknown, msg)
}

// NotFound creates a 404 error
func NotFound(msg string) error {
	return New(StatusNotFound, SubStatusUnknown, msg)
}

// ServiceUnavailable creates a 503 error that preserves cause
func ServiceUnavailable(msg string, cause error) error {
	e := merry.WrapSkipping(errors.New(msg), 1).
		WithHTTPCode(StatusServiceUnavailable).
		WithValue(keyStatus, StatusServiceUnavailable).
		WithValue(keySubStatus, SubStatusUnknown).
		WithValue(keyKind, KindTransient)
	if cause != nil {
		e = e.WithValue(keyCause, cause).
			WithValue(keyRequestCharge, RequestCharge(cause))
	}
	return e
}

// Internal creates a 500 error
func Internal(msg string, cause error) error {
	e := merry.WrapSkipping(errors.New(msg), 1).
		WithHTTPCode(StatusInternalServerError).
		WithValue(keyStatus, StatusInternalServerError).
		WithValue(keyKind, KindInternal)
	if cause != nil {
		e = e.WithValue(keyCause, cause)
	}
	return e
}

// WithCause attaches the original error to err
func WithCause(err error, cause error) error {
	if err == nil {
		return nil
	}
	return merry.WrapSkipping(err, 1).WithValue(keyCause, cause)
}

// WithKind overrides the derived kind of err
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	return merry.WrapSkipping(err, 1).WithValue(keyKind, kind)
}

// WithRequestCharge stamps the total request charge of the operation onto err
func WithRequestCharge(err error, charge float64) error {
	if err == nil {
		return nil
	}
	return merry.WrapSkipping(err, 1).WithValue(keyRequestCharge, charge)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// StatusCode returns the status code of err or 0 if err carries none
func StatusCode(err error) int {
	if v, ok := merry.Value(err, keyStatus).(int); ok {
		return v
	}
	return 0
}

// SubStatusOf returns the sub status of err
func SubStatusOf(err error) SubStatus {
	if v, ok := merry.Value(err, keySubStatus).(SubStatus); ok {
		return v
	}
	return SubStatusUnknown
}

// KindOf returns the kind of err. Errors that were not created by this
// package are internal unless they are context errors, which are transient.
func KindOf(err error) Kind {
	if v, ok := merry.Value(err, keyKind).(Kind); ok {
		return v
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

// RetryAfter returns the server supplied backoff hint of err
func RetryAfter(err error) time.Duration {
	if v, ok := merry.Value(err, keyRetryAfter).(time.Duration); ok {
		return v
	}
	return 0
}

// RequestCharge returns the request charge accumulated until err occurred
func RequestCharge(err error) float64 {
	if v, ok := merry.Value(err, keyRequestCharge).(float64); ok {
		return v
	}
	return 0
}

// Headers returns the response headers attached to err, never nil
func Headers(err error) map[string]string {
	if v, ok := merry.Value(err, keyHeaders).(map[string]string); ok {
		return v
	}
	return map[string]string{}
}

// Cause returns the error that err was raised for, nil if there is none
func Cause(err error) error {
	if v, ok := merry.Value(err, keyCause).(error); ok {
		return v
	}
	return nil
}

// Is reports whether err is (or wraps) one of the sentinels
func Is(err error, sentinels ...error) bool {
	return merry.Is(err, sentinels...)
}

// Details returns the full error description including the stack trace
func Details(err error) string {
	return merry.Details(err)
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// Has reports whether err has the given status and sub status
func Has(err error, status int, sub SubStatus) bool {
	return StatusCode(err) == status && SubStatusOf(err) == sub
}

// IsGone reports a plain Gone error (any 410 without a more specific sub status)
func IsGone(err error) bool {
	if StatusCode(err) != StatusGone {
		return false
	}
	switch SubStatusOf(err) {
	case SubStatusNameCacheIsStale, SubStatusPartitionKeyRangeGone, SubStatusCompletingSplit, SubStatusCompletingPartitionMigration:
		return false
	default:
		return true
	}
}

// IsThrottled reports a 429 error
func IsThrottled(err error) bool {
	return StatusCode(err) == StatusTooManyRequests
}

// IsNotFound reports a plain 404 error
func IsNotFound(err error) bool {
	return StatusCode(err) == StatusNotFound && SubStatusOf(err) != SubStatusReadSessionNotAvailable
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// classify derives the kind of a status pair
func classify(status int, sub SubStatus) Kind {
	switch {
	case status == StatusGone:
		return KindTopology
	case status == StatusForbidden && (sub == SubStatusWriteForbidden || sub == SubStatusDatabaseAccountNotFound):
		return KindTopology
	case status == StatusNotFound && sub == SubStatusReadSessionNotAvailable:
		return KindConsistency
	case status == StatusTooManyRequests, status == StatusRequestTimeout, status == StatusServiceUnavailable:
		return KindTransient
	case status >= 400 && status < 500:
		return KindClient
	default:
		return KindInternal
	}
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
