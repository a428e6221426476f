// Package transport defines the interfaces and abstractions for the RPC
// communication between a dDoc client and replica hosts. It provides a common
// contract that all transport implementations must fulfill, enabling
// protocol-agnostic communication.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending. The target host is
//     chosen per request since physical replica addresses come from the
//     address caches.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to the addressed replica.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
package transport
