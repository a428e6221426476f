package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/dDoc/lib/replica"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/retry"
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds socket buffer sizes, 0 keeps the OS default
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific connection options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the OS default
	TCPLingerSec int
}

// ClientTransportConfig configures the client side of a transport. Endpoints
// are optional, connections to endpoints not listed here are opened on first use.
type ClientTransportConfig struct {
	Endpoints              []string
	TimeoutSecond          int
	RetryCount             int
	ConnectionsPerEndpoint int
	SocketConf             SocketConf
	TCPConf                TCPConf
}

// ServerTransportConfig configures the server side of a transport
type ServerTransportConfig struct {
	Endpoint       string
	TimeoutSecond  int
	WorkersPerConn int
	BufferSize     int
	SocketConf     SocketConf
	TCPConf        TCPConf
}

// --------------------------------------------------------------------------
// Replica server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a replica host
type ServerConfig struct {
	// Transport is the name of the transport ("tcp", "unix", "http")
	Transport string
	// TransportConf configures the listener
	TransportConf ServerTransportConfig
	// Replicas is the number of replicas hosted, replica ids are 0..Replicas-1
	Replicas int
	// Serializer is the name of the message serializer
	Serializer string
	// LogLevel is one of debug, info, warn, error
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
	}

	addSection("Replica Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.TransportConf.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TransportConf.TimeoutSecond))
	addField("Workers Per Connection", strconv.Itoa(c.TransportConf.WorkersPerConn))
	addField("Replicas", strconv.Itoa(c.Replicas))
	addField("Serializer", c.Serializer)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// RetryOptions are the retry policy parameters of the client
type RetryOptions struct {
	GoneWindowSecond            int
	GoneInitialBackoffMs        int
	GoneMaxBackoffMs            int
	EndpointDiscoveryMaxRetries int
	EndpointDiscoveryIntervalMs int
	SessionMaxRetries           int
	ThrottleMaxRetries          int
	ThrottleMaxWaitSecond       int
}

// ClientConfig holds all configuration parameters of a dDoc client
type ClientConfig struct {
	// AccountEndpoint is the gateway of the default region
	AccountEndpoint string
	// MasterKey is the base64 encoded account key
	MasterKey string
	// ConsistencyLevel overrides the account default if set
	ConsistencyLevel        string
	PreferredLocations      []string
	EnableEndpointDiscovery bool
	GatewayTimeoutSecond    int

	// MaxReplicaSetSize is the replica count the read quorum is derived from
	MaxReplicaSetSize int
	Retry             RetryOptions

	// Protocol is the replica transport ("tcp", "unix", "http"), the address
	// caches only keep addresses of this protocol
	Protocol      string
	TransportConf ClientTransportConfig
	Serializer    string

	LogLevel string
}

// DefaultClientConfig returns a client configuration with the default policy parameters
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		AccountEndpoint:         "http://localhost:8081",
		ConsistencyLevel:        "",
		EnableEndpointDiscovery: true,
		GatewayTimeoutSecond:    10,
		MaxReplicaSetSize:       4,
		Retry: RetryOptions{
			GoneWindowSecond:            30,
			GoneInitialBackoffMs:        1000,
			GoneMaxBackoffMs:            15000,
			EndpointDiscoveryMaxRetries: 120,
			EndpointDiscoveryIntervalMs: 1000,
			SessionMaxRetries:           1,
			ThrottleMaxRetries:          9,
			ThrottleMaxWaitSecond:       30,
		},
		Protocol: "tcp",
		TransportConf: ClientTransportConfig{
			TimeoutSecond:          5,
			RetryCount:             1,
			ConnectionsPerEndpoint: 1,
			TCPConf:                TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
		},
		Serializer: "binary",
		LogLevel:   "info",
	}
}

// RetryPolicyOptions converts the retry options into the options of the retry policies
func (c *ClientConfig) RetryPolicyOptions() retry.Options {
	opts := retry.DefaultOptions()
	r := c.Retry
	if r.GoneWindowSecond > 0 {
		opts.GoneWindow = time.Duration(r.GoneWindowSecond) * time.Second
	}
	if r.GoneInitialBackoffMs > 0 {
		opts.GoneInitialBackoff = time.Duration(r.GoneInitialBackoffMs) * time.Millisecond
	}
	if r.GoneMaxBackoffMs > 0 {
		opts.GoneMaxBackoff = time.Duration(r.GoneMaxBackoffMs) * time.Millisecond
	}
	opts.EnableEndpointDiscovery = c.EnableEndpointDiscovery
	if r.EndpointDiscoveryMaxRetries > 0 {
		opts.EndpointDiscoveryMaxRetries = r.EndpointDiscoveryMaxRetries
	}
	if r.EndpointDiscoveryIntervalMs > 0 {
		opts.EndpointDiscoveryInterval = time.Duration(r.EndpointDiscoveryIntervalMs) * time.Millisecond
	}
	if r.SessionMaxRetries >= 0 {
		opts.SessionMaxRetries = r.SessionMaxRetries
	}
	if r.ThrottleMaxRetries >= 0 {
		opts.ThrottleMaxRetries = r.ThrottleMaxRetries
	}
	if r.ThrottleMaxWaitSecond > 0 {
		opts.ThrottleMaxWait = time.Duration(r.ThrottleMaxWaitSecond) * time.Second
	}
	return opts
}

// QuorumOptions returns the quorum read parameters
func (c *ClientConfig) QuorumOptions() replica.QuorumOptions {
	opts := replica.DefaultQuorumOptions()
	if c.MaxReplicaSetSize > 0 {
		opts.MaxReplicaSetSize = c.MaxReplicaSetSize
	}
	return opts
}

// Consistency parses the configured consistency level, ok is false if none is set
func (c *ClientConfig) Consistency() (level resource.ConsistencyLevel, ok bool, err error) {
	if c.ConsistencyLevel == "" {
		return 0, false, nil
	}
	level, err = resource.ParseConsistencyLevel(c.ConsistencyLevel)
	return level, err == nil, err
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-26s: %s\n", name, value))
	}

	masked := "<none>"
	if c.MasterKey != "" {
		masked = "<set>"
	}
	consistency := c.ConsistencyLevel
	if consistency == "" {
		consistency = "<account default>"
	}

	addSection("Account")
	addField("Endpoint", c.AccountEndpoint)
	addField("Master Key", masked)
	addField("Consistency", consistency)
	addField("Preferred Locations", strings.Join(c.PreferredLocations, ", "))
	addField("Endpoint Discovery", strconv.FormatBool(c.EnableEndpointDiscovery))
	addField("Gateway Timeout", fmt.Sprintf("%d sec", c.GatewayTimeoutSecond))

	addSection("Replication")
	addField("Max Replica Set Size", strconv.Itoa(c.MaxReplicaSetSize))

	addSection("Retry Policies")
	addField("Gone Window", fmt.Sprintf("%d sec", c.Retry.GoneWindowSecond))
	addField("Gone Backoff", fmt.Sprintf("%d ms .. %d ms", c.Retry.GoneInitialBackoffMs, c.Retry.GoneMaxBackoffMs))
	addField("Endpoint Discovery", fmt.Sprintf("%d x %d ms", c.Retry.EndpointDiscoveryMaxRetries, c.Retry.EndpointDiscoveryIntervalMs))
	addField("Session Redirects", strconv.Itoa(c.Retry.SessionMaxRetries))
	addField("Throttle", fmt.Sprintf("%d retries, %d sec", c.Retry.ThrottleMaxRetries, c.Retry.ThrottleMaxWaitSecond))

	addSection("Transport")
	addField("Protocol", c.Protocol)
	addField("Serializer", c.Serializer)
	addField("Timeout", fmt.Sprintf("%d sec", c.TransportConf.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.TransportConf.RetryCount))
	addField("Connections Per Endpoint", strconv.Itoa(int(math.Max(1, float64(c.TransportConf.ConnectionsPerEndpoint)))))
	for i, endpoint := range c.TransportConf.Endpoints {
		addField("Endpoint "+strconv.Itoa(i), endpoint)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
