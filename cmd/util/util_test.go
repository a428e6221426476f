package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestParsePartitionKey(t *testing.T) {
	key, err := ParsePartitionKey("")
	require.NoError(t, err)
	assert.Nil(t, key)

	key, err = ParsePartitionKey(`["acme", 5]`)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, key.Equal(pkey.NewKey(pkey.String("acme"), pkey.Number(5))))

	_, err = ParsePartitionKey(`acme`)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"West Europe", "North Europe"}, splitList(" West Europe,,North Europe "))
	assert.Nil(t, splitList(""))
}

func TestGetServerTransport(t *testing.T) {
	for _, name := range []string{"tcp", "unix", "http"} {
		st, err := GetServerTransport(name)
		require.NoError(t, err)
		assert.NotNil(t, st)
	}
	_, err := GetServerTransport("udp")
	assert.Error(t, err)
}
