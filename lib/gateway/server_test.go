package gateway

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/auth"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var masterKey = base64.StdEncoding.EncodeToString([]byte("gateway test key"))

func newCatalogServer(t *testing.T) (*Catalog, string) {
	t.Helper()
	verifier, err := auth.NewKeySigner(masterKey)
	require.NoError(t, err)

	catalog := NewCatalog("dev", "")
	srv := httptest.NewServer(NewServer(catalog, verifier).Handler())
	t.Cleanup(srv.Close)
	return catalog, srv.URL
}

func newSignedClient(t *testing.T, url, key string) *Client {
	t.Helper()
	signer, err := auth.NewKeySigner(key)
	require.NoError(t, err)
	c := NewClient(Options{Endpoint: url, Timeout: 5 * time.Second}, signer)
	t.Cleanup(c.Close)
	return c
}

func TestServerServesCatalog(t *testing.T) {
	catalog, url := newCatalogServer(t)
	catalog.AddCollection("dbs/db/colls/c", "rid1", &pkey.Definition{Paths: []string{"/tenant"}})
	catalog.SetAddresses("rid1", "0", []address.Info{
		{PhysicalURI: "tcp://127.0.0.1:9100/?replica=0", IsPrimary: true, Protocol: "tcp"},
		{PhysicalURI: "tcp://127.0.0.1:9100/?replica=1", Protocol: "tcp"},
	})
	catalog.SetMasterAddresses([]address.Info{{PhysicalURI: "tcp://127.0.0.1:9100/?replica=0", IsPrimary: true, Protocol: "tcp"}})

	c := newSignedClient(t, url, masterKey)
	ctx := context.Background()

	account, err := c.ReadDatabaseAccount(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "dev", account.ID)

	coll, err := c.ReadCollection(ctx, "dbs/db/colls/c")
	require.NoError(t, err)
	assert.Equal(t, "rid1", coll.ResourceID)
	assert.Equal(t, []string{"/tenant"}, coll.PartitionKey.Paths)

	_, err = c.ReadCollection(ctx, "dbs/db/colls/missing")
	assert.True(t, dberr.IsNotFound(err))

	infos, err := c.FetchAddresses(ctx, "", address.Query{CollectionRID: "rid1", RangeID: "0", Protocol: "tcp"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.True(t, infos[0].IsPrimary)

	infos, err = c.FetchAddresses(ctx, "", address.Query{Master: true, ResourceAddress: "dbs/db", Protocol: "tcp"})
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	infos, err = c.FetchAddresses(ctx, "", address.Query{CollectionRID: "rid1", RangeID: "9", Protocol: "tcp"})
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestServerRangeFeedAfterSplit(t *testing.T) {
	catalog, url := newCatalogServer(t)
	catalog.AddCollection("dbs/db/colls/c", "rid1", &pkey.Definition{Paths: []string{"/tenant"}})
	c := newSignedClient(t, url, masterKey)

	ranges := routing.NewRangeCache(c, nil)
	ctx := context.Background()

	m, err := ranges.TryLookup(ctx, "rid1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	// unchanged ranges are not modified
	_, etag, err := c.ReadPartitionKeyRanges(ctx, "rid1", "")
	require.NoError(t, err)
	changed, sameETag, err := c.ReadPartitionKeyRanges(ctx, "rid1", etag)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, etag, sameETag)

	catalog.SetRanges("rid1", []routing.PartitionKeyRange{
		{ID: "1", MinInclusive: "", MaxExclusive: "80", Parents: []string{"0"}},
		{ID: "2", MinInclusive: "80", MaxExclusive: "FF", Parents: []string{"0"}},
	})

	m, err = ranges.TryLookup(ctx, "rid1", m)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.IsGone("0"))
	assert.Len(t, catalog.Ranges("rid1"), 2)
	assert.Equal(t, []string{"rid1"}, catalog.Collections())
}

func TestServerRejectsWrongKey(t *testing.T) {
	_, url := newCatalogServer(t)
	c := newSignedClient(t, url, base64.StdEncoding.EncodeToString([]byte("wrong key")))

	_, err := c.ReadDatabaseAccount(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, dberr.StatusUnauthorized, dberr.StatusCode(err))
	assert.Equal(t, dberr.KindClient, dberr.KindOf(err))

	unsigned := NewClient(Options{Endpoint: url}, nil)
	defer unsigned.Close()
	_, err = unsigned.ReadDatabaseAccount(context.Background(), "")
	assert.Equal(t, dberr.StatusUnauthorized, dberr.StatusCode(err))
}
