package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"go.uber.org/multierr"
)

// --------------------------------------------------------------------------
// Replica addresses
// --------------------------------------------------------------------------

// Address is a parsed physical replica URI:
//
//	tcp://host:port/?replica=N
//	http://host:port/?replica=N
//	unix:///path/to/socket?replica=N
type Address struct {
	Scheme string
	// Host is the transport endpoint, the socket path for unix
	Host    string
	Replica uint64
}

// ParseAddress parses a physical replica URI, the replica defaults to 0
func ParseAddress(uri string) (Address, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Address{}, dberr.Client(dberr.ErrInvalidArgument, "malformed replica address %q: %v", uri, err)
	}

	addr := Address{Scheme: u.Scheme, Host: u.Host}
	if u.Scheme == "unix" {
		addr.Host = u.Path
	}
	if addr.Scheme == "" || addr.Host == "" {
		return Address{}, dberr.Client(dberr.ErrInvalidArgument, "malformed replica address %q", uri)
	}

	if v := u.Query().Get("replica"); v != "" {
		if addr.Replica, err = strconv.ParseUint(v, 10, 64); err != nil {
			return Address{}, dberr.Client(dberr.ErrInvalidArgument, "malformed replica id in %q", uri)
		}
	}
	return addr, nil
}

// String returns the URI of the address
func (a Address) String() string {
	if a.Scheme == "unix" {
		return fmt.Sprintf("unix://%s?replica=%d", a.Host, a.Replica)
	}
	return fmt.Sprintf("%s://%s/?replica=%d", a.Scheme, a.Host, a.Replica)
}

// --------------------------------------------------------------------------
// Store client
// --------------------------------------------------------------------------

// StoreClient sends requests to replicas. It implements replica.IStoreClient.
type StoreClient struct {
	serializer serializer.IRPCSerializer
	transports map[string]transport.IRPCClientTransport
}

// NewStoreClient creates a store client. transports maps URI schemes to the
// client transport serving them, each is connected with config.
func NewStoreClient(
	config common.ClientTransportConfig,
	serializer serializer.IRPCSerializer,
	transports map[string]transport.IRPCClientTransport,
) (*StoreClient, error) {
	for scheme, t := range transports {
		if err := t.Connect(config); err != nil {
			return nil, fmt.Errorf("failed to connect %s transport: %w", scheme, err)
		}
	}

	return &StoreClient{
		serializer: serializer,
		transports: transports,
	}, nil
}

// Invoke sends req to the replica at uri. It returns when the replica
// answered or ctx is done.
func (c *StoreClient) Invoke(ctx context.Context, uri string, req *resource.Request) (*resource.StoreResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr, err := ParseAddress(uri)
	if err != nil {
		return nil, err
	}

	t, ok := c.transports[addr.Scheme]
	if !ok {
		return nil, dberr.Internal(fmt.Sprintf("no transport for replica address %s", uri), nil)
	}

	msg := toMessage(req)
	if msg.MsgType == common.MsgTUnknown {
		return nil, dberr.Client(dberr.ErrInvalidArgument, "operation %s cannot be sent to a replica", req.Operation)
	}

	type result struct {
		resp *common.Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := invokeRPCRequest(addr, msg, t, c.serializer)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return toStoreResponse(r.resp), nil
	}
}

// Close closes all transports
func (c *StoreClient) Close() error {
	var err error
	for _, t := range c.transports {
		err = multierr.Append(err, t.Close())
	}
	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// toMessage converts a request. The resolved partition key range travels as
// header so the replica knows the partition.
func toMessage(req *resource.Request) *common.Message {
	headers := req.Headers.Clone()
	if r := req.Context.ResolvedRange; r != nil && headers.Get(resource.HeaderPartitionKeyRangeID) == "" {
		headers.Set(resource.HeaderPartitionKeyRangeID, r.ID)
	}
	return common.NewStoreRequest(req.Operation, req.ResourceType, req.ResourceAddress, headers, req.Body)
}

func toStoreResponse(msg *common.Message) *resource.StoreResponse {
	headers := resource.Headers(msg.Headers)
	if headers == nil {
		headers = resource.Headers{}
	}
	status := msg.Status
	if status == 0 {
		status = dberr.StatusOK
	}
	return &resource.StoreResponse{Status: status, Headers: headers, Body: msg.Body}
}
