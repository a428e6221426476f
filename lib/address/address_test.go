package address

import (
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterPrefersInternalAddresses(t *testing.T) {
	addresses := []Info{
		{PhysicalURI: "tcp://public-1/?replica=1", IsPublic: true, Protocol: "tcp"},
		{PhysicalURI: "tcp://internal-1/?replica=1", Protocol: "tcp"},
		{PhysicalURI: "", Protocol: "tcp"},
		{PhysicalURI: "http://internal-2/?replica=2", Protocol: "http"},
	}

	assert.Equal(t, []Info{{PhysicalURI: "tcp://internal-1/?replica=1", Protocol: "tcp"}}, Filter(addresses, "tcp"))

	public := []Info{
		{PhysicalURI: "tcp://public-1/?replica=1", IsPublic: true},
		{PhysicalURI: "", IsPublic: true},
	}
	assert.Equal(t, public[:1], Filter(public, "tcp"))
	assert.Empty(t, Filter(nil, "tcp"))
}

func TestSetPrimary(t *testing.T) {
	set := &Set{Addresses: []Info{
		{PhysicalURI: "a"},
		{PhysicalURI: "b", IsPrimary: true},
	}}
	primary, err := set.Primary()
	require.NoError(t, err)
	assert.Equal(t, "b", primary)
	assert.Equal(t, []string{"a"}, set.URIs(false))
	assert.Equal(t, []string{"a", "b"}, set.URIs(true))

	_, err = (&Set{Addresses: []Info{{PhysicalURI: "a"}}}).Primary()
	assert.True(t, dberr.IsGone(err))
	assert.Equal(t, dberr.StatusGone, dberr.StatusCode(err))

	var nilSet *Set
	_, err = nilSet.Primary()
	assert.True(t, dberr.IsGone(err))
}

func TestIsReadingFromMaster(t *testing.T) {
	master := []resource.Type{
		resource.TypeOffer, resource.TypeDatabase, resource.TypeUser, resource.TypePermission,
		resource.TypeTopology, resource.TypeDatabaseAccount, resource.TypePartitionKeyRange,
	}
	for _, typ := range master {
		assert.True(t, IsReadingFromMaster(typ, resource.OpRead), typ.String())
		assert.True(t, IsReadingFromMaster(typ, resource.OpCreate), typ.String())
	}

	assert.True(t, IsReadingFromMaster(resource.TypeCollection, resource.OpReadFeed))
	assert.True(t, IsReadingFromMaster(resource.TypeCollection, resource.OpQuery))
	assert.True(t, IsReadingFromMaster(resource.TypeCollection, resource.OpSqlQuery))
	assert.False(t, IsReadingFromMaster(resource.TypeCollection, resource.OpRead))
	assert.False(t, IsReadingFromMaster(resource.TypeDocument, resource.OpQuery))
}

func TestLookupKey(t *testing.T) {
	perm := resource.NewRequest(resource.OpRead, resource.TypePermission, "dbs/db1/users/u1/permissions/p1", nil, nil)
	key, err := LookupKey(perm)
	require.NoError(t, err)
	assert.Equal(t, "db1||p1|u1", key)

	db := resource.NewRequest(resource.OpRead, resource.TypeDatabase, "dbs/db1", nil, nil)
	key, err = LookupKey(db)
	require.NoError(t, err)
	assert.Equal(t, "db1|||", key)

	doc := resource.NewRequest(resource.OpRead, resource.TypeDocument, "dbs/db1/colls/c1/docs/d1", nil, nil)
	_, err = LookupKey(doc)
	assert.Error(t, err)

	doc.Context.ResolvedCollectionRID = "rid1"
	doc.Context.ResolvedRange = &routing.PartitionKeyRange{ID: "3"}
	key, err = LookupKey(doc)
	require.NoError(t, err)
	assert.Equal(t, "rid1/3", key)
}
