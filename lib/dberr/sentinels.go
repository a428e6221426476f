package dberr

import "errors"

// Header names needed to decode failed responses. They mirror the constants of
// the resource package, which cannot be imported here.
const (
	HeaderSubStatus     = "x-ms-substatus"
	HeaderRetryAfterMs  = "x-ms-retry-after-ms"
	HeaderRequestCharge = "x-ms-request-charge"
)

// Caller contract violations, wrapped by Client
var (
	ErrInvalidArgument               = errors.New("invalid argument")
	ErrMalformedPath                 = errors.New("malformed partition key path")
	ErrMissingPartitionKeyDefinition = errors.New("missing partition key definition")
	ErrTooManyPartitionKeyComponents = errors.New("too many partition key components")
	ErrInvalidPartitionKey           = errors.New("invalid partition key")
	ErrInvalidContinuationToken      = errors.New("invalid continuation token")
	ErrCrossPartitionRequest         = errors.New("cross partition request requires a partition key or range id")
)
