package ddoc

import (
	"context"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/retry"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/goccy/go-json"
)

// RequestOptions are the per request options of document operations
type RequestOptions struct {
	// PartitionKey routes the request. Writes extract it from the document
	// if it is nil.
	PartitionKey *pkey.Key
	// Consistency overrides the default consistency of reads
	Consistency *resource.ConsistencyLevel
	// SessionToken overrides the tracked session token of session reads
	SessionToken string
}

// FeedOptions configure one page of a document feed or query
type FeedOptions struct {
	// MaxItemCount limits the page size, 0 lets the replica decide
	MaxItemCount int
	// Continuation resumes a feed where the previous page ended
	Continuation string
	// PartitionKey restricts the feed to one partition. Without it all
	// partitions are read one after the other.
	PartitionKey *pkey.Key
	Consistency  *resource.ConsistencyLevel
}

// FeedPage is one page of documents
type FeedPage struct {
	Documents []json.RawMessage
	// Continuation is empty after the last page
	Continuation  string
	RequestCharge float64
	SessionToken  string
}

type feedBody struct {
	Documents []json.RawMessage `json:"Documents"`
}

// --------------------------------------------------------------------------
// Documents
// --------------------------------------------------------------------------

// ReadDocument reads document id of the collection link
func (c *Client) ReadDocument(ctx context.Context, link, id string, opts *RequestOptions) (*resource.StoreResponse, error) {
	req, err := c.documentRequest(resource.OpRead, documentLink(link, id), nil, opts)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, req)
}

// CreateDocument creates doc in the collection link, 409 if it exists
func (c *Client) CreateDocument(ctx context.Context, link string, doc []byte, opts *RequestOptions) (*resource.StoreResponse, error) {
	return c.write(ctx, resource.OpCreate, link, strings.Trim(link, "/")+"/docs", doc, opts)
}

// UpsertDocument creates or replaces doc in the collection link
func (c *Client) UpsertDocument(ctx context.Context, link string, doc []byte, opts *RequestOptions) (*resource.StoreResponse, error) {
	return c.write(ctx, resource.OpUpsert, link, strings.Trim(link, "/")+"/docs", doc, opts)
}

// ReplaceDocument replaces document id with doc, 404 if it does not exist
func (c *Client) ReplaceDocument(ctx context.Context, link, id string, doc []byte, opts *RequestOptions) (*resource.StoreResponse, error) {
	return c.write(ctx, resource.OpReplace, link, documentLink(link, id), doc, opts)
}

// DeleteDocument deletes document id of the collection link
func (c *Client) DeleteDocument(ctx context.Context, link, id string, opts *RequestOptions) (*resource.StoreResponse, error) {
	req, err := c.documentRequest(resource.OpDelete, documentLink(link, id), nil, opts)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, req)
}

func (c *Client) write(ctx context.Context, op resource.OperationType, link, address string, doc []byte, opts *RequestOptions) (*resource.StoreResponse, error) {
	if opts == nil || opts.PartitionKey == nil {
		key, err := c.extractPartitionKey(ctx, link, doc)
		if err != nil {
			return nil, err
		}
		o := RequestOptions{PartitionKey: key}
		if opts != nil {
			o.Consistency, o.SessionToken = opts.Consistency, opts.SessionToken
		}
		opts = &o
	}

	req, err := c.documentRequest(op, address, doc, opts)
	if err != nil {
		return nil, err
	}
	if op == resource.OpUpsert {
		req.Headers.Set(resource.HeaderIsUpsert, "true")
	}
	return c.Execute(ctx, req)
}

// extractPartitionKey reads the partition key of doc as defined by the
// collection, nil for collections without partition key
func (c *Client) extractPartitionKey(ctx context.Context, link string, doc []byte) (*pkey.Key, error) {
	coll, err := c.collections.ResolveByName(ctx, link)
	if err != nil {
		return nil, err
	}
	key, err := pkey.ExtractPartitionKeyValue(doc, coll.PartitionKey)
	if err != nil {
		return nil, err
	}
	if key.IsEmpty() {
		return nil, nil
	}
	return &key, nil
}

func (c *Client) documentRequest(op resource.OperationType, address string, body []byte, opts *RequestOptions) (*resource.Request, error) {
	req := resource.NewRequest(op, resource.TypeDocument, address, body, nil)
	if opts == nil {
		return req, nil
	}
	if err := setPartitionKey(req, opts.PartitionKey); err != nil {
		return nil, err
	}
	if opts.Consistency != nil {
		req.Headers.Set(resource.HeaderConsistencyLevel, opts.Consistency.String())
	}
	if opts.SessionToken != "" {
		req.Headers.Set(resource.HeaderSessionToken, opts.SessionToken)
	}
	return req, nil
}

// --------------------------------------------------------------------------
// Feeds
// --------------------------------------------------------------------------

// QueryDocuments reads one page of the documents of the collection link. A
// non empty query is sent to the replicas as query text, otherwise the
// document feed is read.
//
// Without a partition key the feed spans all partitions: each page comes from
// one partition and the continuation records the range the feed reached, so
// it stays valid across partition splits. After a split every child of the
// range resumes from the token the range had.
func (c *Client) QueryDocuments(ctx context.Context, link, query string, opts FeedOptions) (*FeedPage, error) {
	req, err := c.feedRequest(link, query, opts)
	if err != nil {
		return nil, err
	}

	if opts.PartitionKey != nil {
		resp, err := c.Execute(ctx, req)
		if err != nil {
			return nil, err
		}
		return toFeedPage(resp, resp.Continuation())
	}

	coll, err := c.collections.ResolveByName(ctx, link)
	if err != nil {
		return nil, err
	}
	req.Headers.Set(resource.HeaderEnableCrossPartition, "true")

	token, err := routing.ExtractContinuationToken(req.Headers)
	if err != nil {
		return nil, err
	}
	fromToken := token.Range
	provided := []routing.Range[string]{routing.FullRange()}

	// the target range is resolved again on every attempt, a range that was
	// split while the page was read is replaced by its first child
	var current *routing.PartitionKeyRange
	resp, err := c.execute(ctx, req, func(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
		gone := retry.NewGoneAndRetryPolicy(req, c.retryOpts)
		return retry.Execute(ctx, gone, req, c.collector, func(ctx context.Context) (*resource.StoreResponse, error) {
			target, err := routing.TryGetTargetRangeFromContinuationTokenRange(ctx, provided, c.ranges, coll.ResourceID, fromToken)
			if err != nil {
				return nil, err
			}
			if target == nil {
				return nil, dberr.NotFound("collection " + link + " has no partition key ranges")
			}
			current = target
			req.RangeIdentity = &resource.RangeIdentity{CollectionRID: coll.ResourceID, RangeID: target.ID}
			return c.replicated.Dispatch(ctx, req)
		})
	})
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if inner := resp.Continuation(); inner != "" {
		headers[routing.HeaderContinuation] = inner
	}
	parent := routing.SplitParent(token, *current)
	if err := routing.TryAddRangeToSplitContinuationToken(ctx, headers, provided, c.ranges, coll.ResourceID, *current, parent); err != nil {
		return nil, err
	}
	return toFeedPage(resp, headers[routing.HeaderContinuation])
}

// QueryAllDocuments reads all pages of a feed
func (c *Client) QueryAllDocuments(ctx context.Context, link, query string, opts FeedOptions) ([]json.RawMessage, float64, error) {
	var (
		docs   []json.RawMessage
		charge float64
	)
	for {
		page, err := c.QueryDocuments(ctx, link, query, opts)
		if err != nil {
			return nil, charge, err
		}
		docs = append(docs, page.Documents...)
		charge += page.RequestCharge
		if page.Continuation == "" {
			return docs, charge, nil
		}
		opts.Continuation = page.Continuation
	}
}

func (c *Client) feedRequest(link, query string, opts FeedOptions) (*resource.Request, error) {
	op, body := resource.OpReadFeed, []byte(nil)
	if query != "" {
		var err error
		op = resource.OpQuery
		if body, err = json.Marshal(map[string]string{"query": query}); err != nil {
			return nil, dberr.Internal("failed to encode query", err)
		}
	}

	req := resource.NewRequest(op, resource.TypeDocument, strings.Trim(link, "/")+"/docs", body, nil)
	if query != "" {
		req.Headers.Set(resource.HeaderIsQuery, "true")
	}
	if opts.MaxItemCount > 0 {
		req.Headers.Set(resource.HeaderMaxItemCount, strconv.Itoa(opts.MaxItemCount))
	}
	if opts.Continuation != "" {
		req.Headers.Set(resource.HeaderContinuation, opts.Continuation)
	}
	if opts.Consistency != nil {
		req.Headers.Set(resource.HeaderConsistencyLevel, opts.Consistency.String())
	}
	if err := setPartitionKey(req, opts.PartitionKey); err != nil {
		return nil, err
	}
	return req, nil
}

func toFeedPage(resp *resource.StoreResponse, continuation string) (*FeedPage, error) {
	page := &FeedPage{
		Continuation:  continuation,
		RequestCharge: resp.RequestCharge(),
		SessionToken:  resp.SessionToken(),
	}
	if len(resp.Body) == 0 {
		return page, nil
	}
	body := feedBody{}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, dberr.Internal("malformed feed page", err)
	}
	page.Documents = body.Documents
	return page, nil
}

func setPartitionKey(req *resource.Request, key *pkey.Key) error {
	if key == nil {
		return nil
	}
	raw, err := key.MarshalJSON()
	if err != nil {
		return dberr.Client(dberr.ErrInvalidArgument, "invalid partition key %s: %v", key, err)
	}
	req.Headers.Set(resource.HeaderPartitionKey, string(raw))
	return nil
}

func documentLink(link, id string) string {
	return strings.Trim(link, "/") + "/docs/" + id
}
