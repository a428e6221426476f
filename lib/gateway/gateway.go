// Package gateway implements the HTTP client of the gateway metadata service.
//
// The gateway serves the metadata the client caches: collections, partition
// key ranges (as an incremental feed), replica addresses and the database
// account. Client implements the source interfaces of the collection,
// routing, address and endpoint packages.
//
// Routes (relative to the endpoint):
//
//	GET /                                  database account
//	GET /dbs/{db}/colls/{coll}             collection
//	GET /{rid}                             collection by resource id
//	GET /colls/{rid}/pkranges              partition key ranges (If-None-Match, A-IM)
//	GET /addresses/?$resolveFor=...        replica addresses
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/collection"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/endpoint"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("gateway")

// IncrementalFeed is the A-IM header value requesting only changed ranges
const IncrementalFeed = "Incremental feed"

// IMetadataService is the metadata the client reads from the gateway
type IMetadataService interface {
	ReadCollection(ctx context.Context, link string) (*collection.Collection, error)
	ReadPartitionKeyRanges(ctx context.Context, collectionRID, ifNoneMatch string) ([]routing.PartitionKeyRange, string, error)
	FetchAddresses(ctx context.Context, endpoint string, q address.Query) ([]address.Info, error)
	ReadDatabaseAccount(ctx context.Context, endpoint string) (*endpoint.DatabaseAccount, error)
}

// ISigner authorizes gateway requests
type ISigner interface {
	Sign(verb, resourceIDOrFullName, resourceType string, headers resource.Headers)
}

// Options configure a Client
type Options struct {
	// Endpoint is the default gateway endpoint, used by the calls that are not
	// given an endpoint
	Endpoint            string
	Timeout             time.Duration
	MaxIdleConnsPerHost int
}

// Client reads metadata from the gateway over HTTP
type Client struct {
	endpoint string
	client   *http.Client
	signer   ISigner
}

// NewClient creates a client. signer may be nil for gateways without
// authorization.
func NewClient(opts Options, signer ISigner) *Client {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = 10
	}
	return &Client{
		endpoint: strings.TrimSuffix(opts.Endpoint, "/"),
		signer:   signer,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Close releases idle connections
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see gateway.IMetadataService)
// --------------------------------------------------------------------------

func (c *Client) ReadCollection(ctx context.Context, link string) (*collection.Collection, error) {
	link = strings.Trim(link, "/")
	body, _, err := c.get(ctx, c.endpoint, "/"+link, nil, link, "colls", nil)
	if err != nil {
		return nil, err
	}
	coll := &collection.Collection{}
	if err := json.Unmarshal(body, coll); err != nil {
		return nil, dberr.Internal("malformed collection "+link, err)
	}
	return coll, nil
}

type rangeFeed struct {
	ResourceID string                      `json:"_rid"`
	Ranges     []routing.PartitionKeyRange `json:"PartitionKeyRanges"`
	Count      int                         `json:"_count"`
}

func (c *Client) ReadPartitionKeyRanges(ctx context.Context, collectionRID, ifNoneMatch string) ([]routing.PartitionKeyRange, string, error) {
	headers := resource.Headers{}
	if ifNoneMatch != "" {
		headers.Set(resource.HeaderIfNoneMatch, ifNoneMatch)
		headers.Set(resource.HeaderAIM, IncrementalFeed)
	}

	body, respHeaders, err := c.get(ctx, c.endpoint, "/colls/"+collectionRID+"/pkranges", nil, collectionRID, "pkranges", headers)
	if dberr.StatusCode(err) == dberr.StatusNotModified {
		return nil, ifNoneMatch, nil
	}
	if err != nil {
		return nil, "", err
	}

	feed := rangeFeed{}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, "", dberr.Internal("malformed partition key range feed of "+collectionRID, err)
	}
	etag := respHeaders.Get(resource.HeaderETag)
	Logger.Debugf("read %d partition key ranges of %s (etag %q -> %q)", len(feed.Ranges), collectionRID, ifNoneMatch, etag)
	return feed.Ranges, etag, nil
}

type addressFeed struct {
	Addresses []address.Info `json:"Addresses"`
}

func (c *Client) FetchAddresses(ctx context.Context, ep string, q address.Query) ([]address.Info, error) {
	resolveFor := q.ResourceAddress
	resourceID := q.ResourceAddress
	if !q.Master {
		resolveFor = "colls/" + q.CollectionRID + "/docs"
		resourceID = q.CollectionRID
	}

	params := url.Values{}
	params.Set("$resolveFor", resolveFor)
	params.Set("$filter", fmt.Sprintf("protocol eq %s", q.Protocol))
	if q.RangeID != "" {
		params.Set("$partitionKeyRangeIds", q.RangeID)
	}
	headers := resource.Headers{}
	if q.ForceRefresh {
		headers.Set(resource.HeaderForceRefresh, "true")
	}

	body, _, err := c.get(ctx, ep, "/addresses/", params, resourceID, "docs", headers)
	if err != nil {
		return nil, err
	}
	feed := addressFeed{}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, dberr.Internal("malformed address feed for "+resolveFor, err)
	}
	return feed.Addresses, nil
}

func (c *Client) ReadDatabaseAccount(ctx context.Context, ep string) (*endpoint.DatabaseAccount, error) {
	body, _, err := c.get(ctx, ep, "/", nil, "", "", nil)
	if err != nil {
		return nil, err
	}
	account := &endpoint.DatabaseAccount{}
	if err := json.Unmarshal(body, account); err != nil {
		return nil, dberr.Internal("malformed database account", err)
	}
	return account, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// get sends a signed GET request. Responses other than 2xx are returned as
// dberr errors carrying the status, sub status and headers of the response.
func (c *Client) get(ctx context.Context, base, path string, params url.Values, resourceID, resourceType string, headers resource.Headers) ([]byte, resource.Headers, error) {
	if base == "" {
		base = c.endpoint
	}
	target := strings.TrimSuffix(base, "/") + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, dberr.Client(dberr.ErrInvalidArgument, "invalid gateway url %q: %v", target, err)
	}

	if headers == nil {
		headers = resource.Headers{}
	}
	if c.signer != nil {
		c.signer.Sign(http.MethodGet, resourceID, resourceType, headers)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, dberr.ServiceUnavailable("gateway "+base+" unreachable", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, dberr.ServiceUnavailable("reading gateway response failed", err)
	}
	respHeaders := headersOf(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := jsonparser.GetString(body, "message")
		if msg == "" {
			msg = fmt.Sprintf("gateway %s %s: %s", http.MethodGet, path, resp.Status)
		}
		return nil, respHeaders, dberr.FromResponse(resp.StatusCode, respHeaders, msg)
	}
	return body, respHeaders, nil
}

// headersOf flattens HTTP headers into lower case single values
func headersOf(h http.Header) resource.Headers {
	out := make(resource.Headers, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}
