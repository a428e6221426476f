// Package resource holds the request and response model shared by all layers
// of the client: the closed set of resource types and operation types, the
// consistency levels, header names, the Request with its per operation
// RequestContext and the StoreResponse returned by replicas and the gateway.
//
// The Type × OperationType pair decides everything that used to be decided by
// type switches: whether an operation writes (IsWrite), which HTTP verb the
// gateway expects (HTTPMethod) and which path segment names a resource
// (PathSegment). All three are exhaustive switches over the closed enums.
package resource
