package transport_test

import (
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/ValentinKolb/dDoc/rpc/transport/http"
	"github.com/ValentinKolb/dDoc/rpc/transport/tcp"
	"github.com/ValentinKolb/dDoc/rpc/transport/unix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addressable interface {
	Addr() net.Addr
}

type testTransport struct {
	name     string
	server   func() transport.IRPCServerTransport
	client   func() transport.IRPCClientTransport
	endpoint func(t *testing.T) string
}

var testTransports = []testTransport{
	{
		name:     "tcp",
		server:   tcp.NewTCPServerTransport,
		client:   tcp.NewTCPClientTransport,
		endpoint: func(*testing.T) string { return "127.0.0.1:0" },
	},
	{
		name:     "unix",
		server:   unix.NewUnixServerTransport,
		client:   unix.NewUnixClientTransport,
		endpoint: func(t *testing.T) string { return filepath.Join(t.TempDir(), "replica.sock") },
	},
	{
		name:     "http",
		server:   http.NewHttpServerTransport,
		client:   http.NewHttpClientTransport,
		endpoint: func(*testing.T) string { return "127.0.0.1:0" },
	},
}

// echo answers with the replica id and the request
func echo(replicaId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", replicaId)), req...)
}

// startServer starts a server transport and returns the endpoint clients dial
func startServer(t *testing.T, tt testTransport) string {
	server := tt.server()
	server.RegisterHandler(echo)

	config := common.ServerTransportConfig{Endpoint: tt.endpoint(t), TimeoutSecond: 5, WorkersPerConn: 4}
	done := make(chan error, 1)
	go func() { done <- server.Listen(config) }()
	t.Cleanup(func() {
		require.NoError(t, server.Close())
		require.NoError(t, <-done)
	})

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = server.(addressable).Addr()
		return addr != nil
	}, 2*time.Second, 5*time.Millisecond)
	return addr.String()
}

func connect(t *testing.T, tt testTransport, endpoints ...string) transport.IRPCClientTransport {
	client := tt.client()
	require.NoError(t, client.Connect(common.ClientTransportConfig{
		Endpoints:              endpoints,
		TimeoutSecond:          5,
		RetryCount:             2,
		ConnectionsPerEndpoint: 2,
	}))
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRoundTrip(t *testing.T) {
	for _, tt := range testTransports {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := startServer(t, tt)
			client := connect(t, tt, endpoint)

			resp, err := client.Send(endpoint, 2, []byte("ping"))
			require.NoError(t, err)
			assert.Equal(t, "2:ping", string(resp))

			resp, err = client.Send(endpoint, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, "0:", string(resp))
		})
	}
}

func TestEndpointsConnectedOnFirstUse(t *testing.T) {
	for _, tt := range testTransports {
		t.Run(tt.name, func(t *testing.T) {
			first := startServer(t, tt)
			second := startServer(t, tt)

			// no endpoints configured, both hosts are addressed per request
			client := connect(t, tt)

			resp, err := client.Send(first, 1, []byte("a"))
			require.NoError(t, err)
			assert.Equal(t, "1:a", string(resp))

			resp, err = client.Send(second, 3, []byte("b"))
			require.NoError(t, err)
			assert.Equal(t, "3:b", string(resp))
		})
	}
}

func TestConcurrentRequests(t *testing.T) {
	for _, tt := range testTransports {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := startServer(t, tt)
			client := connect(t, tt, endpoint)

			var wg sync.WaitGroup
			errs := make(chan error, 100)
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					req := []byte(fmt.Sprintf("request-%d", i))
					resp, err := client.Send(endpoint, uint64(i%4), req)
					if err != nil {
						errs <- err
						return
					}
					if want := fmt.Sprintf("%d:%s", i%4, req); string(resp) != want {
						errs <- fmt.Errorf("got %q, want %q", resp, want)
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}
		})
	}
}

func TestUnreachableEndpoint(t *testing.T) {
	for _, tt := range testTransports {
		t.Run(tt.name, func(t *testing.T) {
			client := connect(t, tt)

			endpoint := "127.0.0.1:1"
			if tt.name == "unix" {
				endpoint = filepath.Join(t.TempDir(), "missing.sock")
			}
			_, err := client.Send(endpoint, 0, []byte("ping"))
			assert.Error(t, err)
		})
	}
}

func TestClosedClient(t *testing.T) {
	for _, tt := range testTransports {
		t.Run(tt.name, func(t *testing.T) {
			endpoint := startServer(t, tt)
			client := connect(t, tt, endpoint)
			require.NoError(t, client.Close())

			_, err := client.Send(endpoint, 0, []byte("ping"))
			assert.Error(t, err)
		})
	}
}
