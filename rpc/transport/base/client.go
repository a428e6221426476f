package base

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientTransportConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientConnection represents a single net connection. A broken connection
// is dialed again on the next request.
type clientConnection struct {
	conn         net.Conn
	endpoint     string
	requestChans *xsync.MapOf[uint64, chan responseResult]
	connMu       sync.Mutex // Protects the connection itself
	parent       *clientTransport
}

// endpointPool holds the connections to one endpoint
type endpointPool struct {
	endpoint      string
	connections   []*clientConnection
	nextConnIndex uint64 // Atomic counter for Round Robin
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.)
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientTransportConfig
	pools         *xsync.MapOf[string, *endpointPool]
	nextRequestID uint64 // Atomic counter for unique request IDs
	stopping      atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:     connector,
		pools:         xsync.NewMapOf[string, *endpointPool](),
		nextRequestID: 1, // Start from 1
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientTransportConfig) error {
	// Close all existing connections
	t.closeConnections()

	// Store the config
	t.config = config
	t.stopping.Store(false)

	// Connect the configured endpoints eagerly
	connected := 0
	for _, endpoint := range config.Endpoints {
		pool := t.pool(endpoint)
		for i, c := range pool.connections {
			if _, err := c.ensure(); err != nil {
				Logger.Warningf("Failed to connect to %s (connection %d/%d): %v", endpoint, i+1, len(pool.connections), err)
				continue
			}
			connected++
		}
	}

	if len(config.Endpoints) > 0 && connected == 0 {
		return fmt.Errorf("failed to connect to any endpoint")
	}

	Logger.Infof("Connected %d connections to %d endpoints using %s transport",
		connected, len(config.Endpoints), t.connector.GetName())

	return nil
}

func (t *clientTransport) Send(endpoint string, replicaId uint64, req []byte) (resp []byte, err error) {
	if t.stopping.Load() {
		return nil, fmt.Errorf("transport is closed")
	}

	// Generate a unique request ID
	requestID := atomic.AddUint64(&t.nextRequestID, 1)

	// Define the send function to be used in retries
	send := func(connection *clientConnection) ([]byte, error) {
		conn, err := connection.ensure()
		if err != nil {
			return nil, err
		}

		// Create a channel for the response
		respCh := make(chan responseResult, 1)

		// Register the request
		connection.requestChans.Store(requestID, respCh)

		// Ensure we clean up when done
		defer connection.requestChans.Delete(requestID)

		timeout := time.Duration(t.config.TimeoutSecond) * time.Second

		// Lock the connection only for writing
		connection.connMu.Lock()
		if timeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		err = writeFrame(conn, replicaId, requestID, req)
		connection.connMu.Unlock()

		if err != nil {
			connection.drop(conn, err)
			return nil, err
		}

		// Wait for response or timeout
		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case result := <-respCh:
			return result.data, result.err
		case <-timeoutCh:
			return nil, fmt.Errorf("request to %s timed out", connection.endpoint)
		}
	}

	// Retry logic with exponential backoff
	var lastErr error

	// We always try at least once, and up to maxRetries times
	maxRetries := t.config.RetryCount
	if maxRetries < 1 {
		maxRetries = 1
	}

	// Initial backoff duration in milliseconds
	backoffMs := 50

	pool := t.pool(endpoint)
	for i := 0; i < maxRetries; i++ {
		data, err := send(pool.next())
		if err == nil {
			return data, nil
		}

		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, maxRetries, endpoint, err)

		if i+1 < maxRetries {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())
			time.Sleep(time.Duration(jitter) * time.Millisecond)
			backoffMs *= 2
		}
	}

	// All attempts failed
	return nil, fmt.Errorf("failed to send request to %s after %d attempts: %w", endpoint, maxRetries, lastErr)
}

func (t *clientTransport) Close() error {
	t.stopping.Store(true)
	t.closeConnections()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// pool returns the connection pool of endpoint, creating it if needed.
// Connections are dialed on first use.
func (t *clientTransport) pool(endpoint string) *endpointPool {
	p, _ := t.pools.LoadOrCompute(endpoint, func() *endpointPool {
		connectionsPerEP := 1
		if t.config.ConnectionsPerEndpoint > 0 {
			connectionsPerEP = t.config.ConnectionsPerEndpoint
		}
		p := &endpointPool{endpoint: endpoint, connections: make([]*clientConnection, connectionsPerEP)}
		for i := range p.connections {
			p.connections[i] = &clientConnection{
				endpoint:     endpoint,
				requestChans: xsync.NewMapOf[uint64, chan responseResult](),
				parent:       t,
			}
		}
		return p
	})
	return p
}

// next selects the next connection via Round Robin
func (p *endpointPool) next() *clientConnection {
	if len(p.connections) == 1 {
		// optimize for single connection
		return p.connections[0]
	}
	index := atomic.AddUint64(&p.nextConnIndex, 1) % uint64(len(p.connections))
	return p.connections[index]
}

// closeConnections closes all active connections and forgets all endpoints
func (t *clientTransport) closeConnections() {
	t.pools.Range(func(endpoint string, p *endpointPool) bool {
		for _, c := range p.connections {
			c.connMu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
		}
		t.pools.Delete(endpoint)
		return true
	})
}

// ensure returns the open connection, dialing the endpoint if needed
func (c *clientConnection) ensure() (net.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	timeout := time.Duration(c.parent.config.TimeoutSecond) * time.Second
	conn, err := c.parent.connector.Connect(c.endpoint, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.parent.connector.UpgradeConnection(conn, c.parent.config); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", c.endpoint, err)
	}

	c.conn = conn
	go c.readResponses(conn)
	return conn, nil
}

// drop closes conn if it is still the current connection and fails all
// requests waiting for a response on it
func (c *clientConnection) drop(conn net.Conn, cause error) {
	c.connMu.Lock()
	if c.conn == conn {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.requestChans.Range(func(_ uint64, ch chan responseResult) bool {
		select {
		case ch <- responseResult{err: fmt.Errorf("connection to %s lost: %w", c.endpoint, cause)}:
		default:
		}
		return true
	})
}

// readResponses reads responses of conn in a loop and distributes them to
// waiting requests. It returns once the connection fails or is closed.
func (c *clientConnection) readResponses(conn net.Conn) {
	for {
		// Read the response frame
		replicaID, requestID, data, err := readFrame(conn, nil)
		if err != nil {
			if !c.parent.stopping.Load() {
				Logger.Debugf("Connection to %s closed: %v", c.endpoint, err)
			}
			c.drop(conn, err)
			return
		}

		// Find the corresponding request channel
		if respCh, found := c.requestChans.Load(requestID); found {
			select {
			case respCh <- responseResult{data, nil}:
			default: // the request already failed
			}
		} else {
			// the request timed out before
			Logger.Warningf("Received response for unknown request ID %d of replica %d", requestID, replicaID)
		}
	}
}
