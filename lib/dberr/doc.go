// Package dberr defines the typed errors of the dDoc data plane.
//
// All errors are github.com/ansel1/merry errors. The HTTP status code of the
// failed operation is attached with WithHTTPCode, everything else (sub status,
// error kind, retry-after hint, accumulated request charge, response headers and
// the original cause) is attached as merry values. Stack traces are captured at
// construction time and can be printed with merry.Details.
//
// Every error belongs to exactly one Kind:
//
//   - KindClient: the caller violated a contract (malformed path, overlapping
//     query ranges, missing partition key definition, bad request). Never retried.
//   - KindTransient: throttling (429), timeouts and temporary unavailability.
//     Retried per policy with a server supplied or fixed backoff.
//   - KindTopology: Gone (410), partition split, write forbidden (403/3). Causes a
//     targeted cache invalidation followed by a bounded retry.
//   - KindConsistency: quorum not reachable, session LSN not reached. Retried by
//     the reader's own loops.
//   - KindInternal: everything else.
//
// The retry executor inspects the kind, status and sub status of an error; it
// never depends on the concrete error type.
package dberr
