package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/transport"
)

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	mu         sync.RWMutex
	client     *http.Client
	retryCount int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientTransportConfig) error {
	connectionsPerEP := 10
	if config.ConnectionsPerEndpoint > 0 {
		connectionsPerEP = config.ConnectionsPerEndpoint
	}

	// Create client with default transport
	client := &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: connectionsPerEP,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.client = client
	t.retryCount = config.RetryCount

	// No error, connections are opened on first use
	return nil
}

func (t *httpClientTransport) Send(endpoint string, replicaId uint64, req []byte) (resp []byte, err error) {
	t.mu.RLock()
	client, retryCount := t.client, t.retryCount
	t.mu.RUnlock()

	// Check if the transport is initialized
	if client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}
	if retryCount < 1 {
		retryCount = 1
	}

	// Create the complete URL
	base := strings.TrimSuffix(endpoint, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	requestURL := fmt.Sprintf("%s/%d", base, replicaId)

	// Send the request (with retries)
	var httpResponse *http.Response
	for i := 0; i < retryCount; i++ {
		httpResponse, err = client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
		if err == nil {
			break
		}
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, retryCount, requestURL, err)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	// Read the response body
	return io.ReadAll(httpResponse.Body)
}

func (t *httpClientTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Close the client
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil

	return nil
}
