package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves a single collection with a range feed that splits
// range 0 after the first read
type fakeGateway struct {
	mu      sync.Mutex
	seen    []*http.Request
	queries []string
}

func (g *fakeGateway) record(r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, r)
	g.queries = append(g.queries, r.URL.RawQuery)
}

func (g *fakeGateway) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			g.record(req)
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, nil, map[string]any{
			"id":                "acct",
			"writableLocations": []map[string]string{{"name": "West", "databaseAccountEndpoint": "https://west"}},
			"readableLocations": []map[string]string{{"name": "West", "databaseAccountEndpoint": "https://west"}},
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/dbs/{db}/colls/{coll}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		if vars["coll"] != "c" {
			w.Header().Set(dberr.HeaderSubStatus, "0")
			writeJSON(w, http.StatusNotFound, nil, map[string]string{"code": "NotFound", "message": "collection not found"})
			return
		}
		writeJSON(w, http.StatusOK, nil, map[string]any{
			"id":           "c",
			"_rid":         "rid1",
			"partitionKey": pkey.Definition{Paths: []string{"/tenant"}},
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/colls/{rid}/pkranges", func(w http.ResponseWriter, req *http.Request) {
		switch req.Header.Get(resource.HeaderIfNoneMatch) {
		case "":
			w.Header().Set("ETag", "1")
			writeJSON(w, http.StatusOK, nil, rangeFeed{Ranges: []routing.PartitionKeyRange{{ID: "0", MinInclusive: "", MaxExclusive: "FF"}}})
		case "1":
			w.Header().Set("ETag", "2")
			writeJSON(w, http.StatusOK, nil, rangeFeed{Ranges: []routing.PartitionKeyRange{
				{ID: "1", MinInclusive: "", MaxExclusive: "80", Parents: []string{"0"}},
				{ID: "2", MinInclusive: "80", MaxExclusive: "FF", Parents: []string{"0"}},
			}})
		default:
			w.WriteHeader(http.StatusNotModified)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/addresses/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, nil, addressFeed{Addresses: []address.Info{
			{PhysicalURI: "tcp://r1/", IsPrimary: true, Protocol: "tcp"},
			{PhysicalURI: "tcp://r2/", Protocol: "tcp"},
		}})
	}).Methods(http.MethodGet)

	return r
}

type recordingSigner struct{ calls []string }

func (s *recordingSigner) Sign(verb, resourceID, resourceType string, headers resource.Headers) {
	s.calls = append(s.calls, verb+" "+resourceType+" "+resourceID)
	headers.Set(resource.HeaderAuthorization, "signed")
}

func newClient(t *testing.T) (*Client, *fakeGateway, *recordingSigner) {
	t.Helper()
	g := &fakeGateway{}
	server := httptest.NewServer(g.router())
	t.Cleanup(server.Close)

	signer := &recordingSigner{}
	c := NewClient(Options{Endpoint: server.URL, Timeout: 5 * time.Second}, signer)
	t.Cleanup(c.Close)
	return c, g, signer
}

func TestReadCollection(t *testing.T) {
	c, g, signer := newClient(t)

	coll, err := c.ReadCollection(context.Background(), "dbs/db/colls/c")
	require.NoError(t, err)
	assert.Equal(t, "rid1", coll.ResourceID)
	require.NotNil(t, coll.PartitionKey)
	assert.Equal(t, []string{"/tenant"}, coll.PartitionKey.Paths)

	assert.Equal(t, []string{"GET colls dbs/db/colls/c"}, signer.calls)
	assert.Equal(t, "signed", g.seen[0].Header.Get("Authorization"))
}

func TestReadCollectionNotFound(t *testing.T) {
	c, _, _ := newClient(t)

	_, err := c.ReadCollection(context.Background(), "dbs/db/colls/missing")
	require.Error(t, err)
	assert.True(t, dberr.IsNotFound(err))
	assert.Contains(t, err.Error(), "collection not found")
}

func TestIncrementalRangeFeed(t *testing.T) {
	c, g, _ := newClient(t)
	ctx := context.Background()

	ranges, etag, err := c.ReadPartitionKeyRanges(ctx, "rid1", "")
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
	assert.Equal(t, "1", etag)

	ranges, etag, err = c.ReadPartitionKeyRanges(ctx, "rid1", etag)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, []string{"0"}, ranges[0].Parents)
	assert.Equal(t, "2", etag)
	assert.Equal(t, IncrementalFeed, g.seen[1].Header.Get("A-IM"))

	ranges, etag, err = c.ReadPartitionKeyRanges(ctx, "rid1", etag)
	require.NoError(t, err)
	assert.Empty(t, ranges)
	assert.Equal(t, "2", etag, "not modified keeps the etag")
}

func TestRoutingMapFromGatewayFeed(t *testing.T) {
	c, _, _ := newClient(t)
	ranges := routing.NewRangeCache(c, nil)
	ctx := context.Background()

	m, err := ranges.TryLookup(ctx, "rid1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	m, err = ranges.TryLookup(ctx, "rid1", m)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.IsGone("0"))
}

func TestFetchAddresses(t *testing.T) {
	c, g, _ := newClient(t)

	infos, err := c.FetchAddresses(context.Background(), "", address.Query{
		CollectionRID: "rid1",
		RangeID:       "0",
		Protocol:      "tcp",
		ForceRefresh:  true,
	})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos[0].IsPrimary)

	assert.Contains(t, g.queries[0], "%24partitionKeyRangeIds=0")
	assert.Contains(t, g.queries[0], "%24resolveFor=colls%2Frid1%2Fdocs")
	assert.Equal(t, "true", g.seen[0].Header.Get("X-Ms-Force-Refresh"))
}

func TestReadDatabaseAccount(t *testing.T) {
	c, _, _ := newClient(t)

	account, err := c.ReadDatabaseAccount(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "acct", account.ID)
	require.Len(t, account.WritableLocations, 1)
	assert.Equal(t, "https://west", account.WritableLocations[0].Endpoint)
}

func TestErrorsCarryStatusAndRetryAfter(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/colls/{rid}/pkranges", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(dberr.HeaderRetryAfterMs, "250")
		writeJSON(w, http.StatusTooManyRequests, nil, map[string]string{"message": "slow down"})
	})
	server := httptest.NewServer(r)
	defer server.Close()

	c := NewClient(Options{Endpoint: server.URL}, nil)
	_, _, err := c.ReadPartitionKeyRanges(context.Background(), "rid1", "")
	require.Error(t, err)
	assert.True(t, dberr.IsThrottled(err))
	assert.Equal(t, 250*time.Millisecond, dberr.RetryAfter(err))
}

func TestUnreachableGatewayIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(Options{Endpoint: url, Timeout: time.Second}, nil)
	_, err := c.ReadDatabaseAccount(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, dberr.StatusServiceUnavailable, dberr.StatusCode(err))
	assert.Equal(t, dberr.KindTransient, dberr.KindOf(err))
}
