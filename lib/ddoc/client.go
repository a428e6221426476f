package ddoc

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/auth"
	"github.com/ValentinKolb/dDoc/lib/collection"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/endpoint"
	"github.com/ValentinKolb/dDoc/lib/gateway"
	"github.com/ValentinKolb/dDoc/lib/replica"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/retry"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/ValentinKolb/dDoc/lib/session"
	"github.com/ValentinKolb/dDoc/lib/stats"
	rpcclient "github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	httptransport "github.com/ValentinKolb/dDoc/rpc/transport/http"
	"github.com/ValentinKolb/dDoc/rpc/transport/tcp"
	"github.com/ValentinKolb/dDoc/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("client")

// Client is the entry point of dDoc. It owns the caches, the session tokens
// and the metrics of one client session; all methods are safe for concurrent use.
type Client struct {
	config      common.ClientConfig
	consistency resource.ConsistencyLevel
	retryOpts   retry.Options

	collector   *stats.Collector
	endpoints   *endpoint.Manager
	collections *collection.Cache
	ranges      *routing.RangeCache
	sessions    *session.Container
	replicated  *replica.ReplicatedClient

	closers []func() error
}

// New creates a client reading metadata from metadata and talking to the
// replicas through store. The database account is read once; if that fails
// the client starts with the configured endpoint only.
func New(ctx context.Context, config common.ClientConfig, metadata gateway.IMetadataService, store replica.IStoreClient) (*Client, error) {
	level, explicit, err := config.Consistency()
	if err != nil {
		return nil, err
	}

	collector := stats.NewCollector()
	endpoints := endpoint.NewManager(endpoint.Options{
		DefaultEndpoint:         config.AccountEndpoint,
		PreferredLocations:      config.PreferredLocations,
		EnableEndpointDiscovery: config.EnableEndpointDiscovery,
	}, metadata, collector)
	if err := endpoints.Refresh(ctx); err != nil {
		Logger.Warningf("starting without database account of %s: %v", config.AccountEndpoint, err)
	}
	if !explicit {
		level = accountConsistency(endpoints.Account())
	}

	c := &Client{
		config:      config,
		consistency: level,
		retryOpts:   config.RetryPolicyOptions(),
		collector:   collector,
		endpoints:   endpoints,
		collections: collection.NewCache(metadata, collector),
		ranges:      routing.NewRangeCache(metadata, collector),
		sessions:    session.NewContainer(),
	}

	resolver := address.NewResolver(config.Protocol, metadata, endpoints, c.collections, c.ranges, collector)
	c.replicated = replica.NewReplicatedClient(store, address.NewSelector(resolver), c.sessions, replica.Options{
		DefaultConsistency: level,
		Quorum:             config.QuorumOptions(),
		Retry:              c.retryOpts,
	}, collector)

	Logger.Infof("client for %s ready (consistency %s, protocol %s)", config.AccountEndpoint, level, config.Protocol)
	return c, nil
}

// Open creates a client from its configuration: the gateway is reached over
// HTTP, the replicas over the tcp, unix and http transports.
func Open(ctx context.Context, config common.ClientConfig) (*Client, error) {
	Logger.Debugf("opening client with config:%s", config.String())

	var signer gateway.ISigner
	if config.MasterKey != "" {
		s, err := auth.NewKeySigner(config.MasterKey)
		if err != nil {
			return nil, err
		}
		signer = s
	}
	metadata := gateway.NewClient(gateway.Options{
		Endpoint: config.AccountEndpoint,
		Timeout:  time.Duration(config.GatewayTimeoutSecond) * time.Second,
	}, signer)

	ser, err := serializer.ByName(config.Serializer)
	if err != nil {
		metadata.Close()
		return nil, err
	}
	store, err := rpcclient.NewStoreClient(config.TransportConf, ser, map[string]transport.IRPCClientTransport{
		"tcp":  tcp.NewTCPClientTransport(),
		"unix": unix.NewUnixClientTransport(),
		"http": httptransport.NewHttpClientTransport(),
	})
	if err != nil {
		metadata.Close()
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	c, err := New(ctx, config, metadata, store)
	if err != nil {
		metadata.Close()
		return nil, multierr.Append(err, store.Close())
	}
	c.closers = append(c.closers, func() error { metadata.Close(); return nil }, store.Close)
	return c, nil
}

// Close releases the connections opened by Open
func (c *Client) Close() error {
	var err error
	for _, closeFn := range c.closers {
		err = multierr.Append(err, closeFn())
	}
	c.closers = nil
	return err
}

// Execute runs req through the endpoint discovery, session and throttle
// policies around the replicated dispatch. The returned response (or error)
// carries the request charge of all attempts.
func (c *Client) Execute(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	return c.execute(ctx, req, c.replicated.Invoke)
}

// Stats returns the metrics of the client
func (c *Client) Stats() *stats.Collector {
	return c.collector
}

// Consistency returns the default consistency level of reads
func (c *Client) Consistency() resource.ConsistencyLevel {
	return c.consistency
}

// SessionToken returns the session tokens of a collection ("0:5,1:7"), given
// by name based link or resource id
func (c *Client) SessionToken(collection string) string {
	return c.sessions.ResolveGlobalToken(collection)
}

// Collection resolves a collection by its name based link
func (c *Client) Collection(ctx context.Context, link string) (*collection.Collection, error) {
	return c.collections.ResolveByName(ctx, link)
}

// PartitionKeyRanges returns the ranges of a collection ordered by key
func (c *Client) PartitionKeyRanges(ctx context.Context, link string) ([]routing.PartitionKeyRange, error) {
	coll, err := c.collections.ResolveByName(ctx, link)
	if err != nil {
		return nil, err
	}
	m, err := c.ranges.TryLookup(ctx, coll.ResourceID, nil)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, dberr.NotFound("collection " + link + " has no partition key ranges")
	}
	return m.OrderedRanges(), nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type dispatchFunc func(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error)

func (c *Client) execute(ctx context.Context, req *resource.Request, dispatch dispatchFunc) (*resource.StoreResponse, error) {
	policy := retry.NewClientPolicy(c.endpoints, c.retryOpts)
	resp, err := retry.Execute(ctx, policy, req, c.collector, func(ctx context.Context) (*resource.StoreResponse, error) {
		return dispatch(ctx, req)
	})

	charge := req.ChargeTracker().Total()
	if err != nil {
		Logger.Debugf("%s %s (activity %s) failed: %v", req.Operation, req.ResourceAddress, req.ActivityID, err)
		if dberr.StatusCode(err) != 0 {
			err = dberr.WithRequestCharge(err, charge)
		}
		return nil, err
	}
	resp.SetRequestCharge(charge)
	return resp, nil
}

// accountConsistency returns the default level of the account, Session if
// the account is unknown or names no valid level
func accountConsistency(account *endpoint.DatabaseAccount) resource.ConsistencyLevel {
	if account == nil || account.ConsistencyPolicy.DefaultConsistencyLevel == "" {
		return resource.ConsistencySession
	}
	level, err := resource.ParseConsistencyLevel(account.ConsistencyPolicy.DefaultConsistencyLevel)
	if err != nil {
		Logger.Warningf("ignoring account consistency level: %v", err)
		return resource.ConsistencySession
	}
	return level
}
