package transport

import (
	"github.com/ValentinKolb/dDoc/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes the id of the addressed replica and a request as parameters and returns a response
type ServerHandleFunc func(replicaId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer of a replica host
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks while serving incoming requests.
	// It returns nil once the transport was closed.
	Listen(config common.ServerTransportConfig) error
	// Close stops listening
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport. Requests
// address a replica by the endpoint of its host and its replica id.
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration and
	// connects to the configured endpoints, others are connected on first use
	Connect(config common.ClientTransportConfig) error
	// Send sends a request to a replica on the host at endpoint and returns the response
	Send(endpoint string, replicaId uint64, req []byte) (resp []byte, err error)
	// Close closes all connections
	Close() error
}
