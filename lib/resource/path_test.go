package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("/dbs/db1/colls/c1/docs/d1/")
	require.NoError(t, err)

	assert.False(t, p.IsFeed())
	assert.Equal(t, TypeDocument, p.ResourceType())
	assert.Equal(t, "dbs/db1", p.DatabaseLink())
	assert.Equal(t, "dbs/db1/colls/c1", p.CollectionLink())
	assert.Equal(t, "d1", p.ID())
	assert.Equal(t, "c1", p.IDOf(TypeCollection))

	feed, err := ParsePath("dbs/db1/colls/c1/docs")
	require.NoError(t, err)
	assert.True(t, feed.IsFeed())
	assert.Equal(t, TypeDocument, feed.ResourceType())
	assert.Equal(t, "", feed.ID())

	root, err := ParsePath("")
	require.NoError(t, err)
	assert.Equal(t, TypeDatabaseAccount, root.ResourceType())
	assert.Equal(t, "", root.CollectionLink())
}

func TestParsePathErrors(t *testing.T) {
	_, err := ParsePath("dbs//colls")
	assert.Error(t, err)
	_, err = ParsePath("tables/t1")
	assert.Error(t, err)
}
