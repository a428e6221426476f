// Package http implements an HTTP-based transport layer for the replica RPC.
// A request for replica N of a host is a POST of the serialized message to
// http://{host}/{N}; the response body is the serialized reply.
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport on a shared
//     http.Client, the host is taken from the replica address of each request.
//
//   - httpServerTransport: Implements IRPCServerTransport with a gorilla/mux
//     router that passes the replica id from the URL path to the handler.
//     Requests are logged at debug level.
package http
