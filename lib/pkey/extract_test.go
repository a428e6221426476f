package pkey

import (
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path     string
		segments []string
	}{
		{"/id", []string{"id"}},
		{"/address/city", []string{"address", "city"}},
		{"/address/city/", []string{"address", "city"}},
		{`/"zip code"/value`, []string{"zip code", "value"}},
		{`/'a/b'`, []string{"a/b"}},
		{`/"say \"hi\""`, []string{`say "hi"`}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			segments, err := ParsePath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.segments, segments)
		})
	}
}

func TestParsePathMalformed(t *testing.T) {
	for _, p := range []string{"", "id", "/", "//a", `/"open`, `/"a"b`} {
		t.Run(p, func(t *testing.T) {
			_, err := ParsePath(p)
			assert.True(t, dberr.Is(err, dberr.ErrMalformedPath), "%v", err)
			assert.Equal(t, dberr.KindClient, dberr.KindOf(err))
		})
	}
}

func TestExtractPartitionKeyValue(t *testing.T) {
	doc := []byte(`{
		"id": "doc-1",
		"tenant": {"name": "acme", "zip code": 12345, "active": true},
		"deleted": null,
		"tags": ["a", "b"],
		"meta": {"x": 1, "[1]": 7},
		"[0]": "bracket"
	}`)

	tests := []struct {
		name  string
		paths []string
		want  Key
	}{
		{"string", []string{"/id"}, NewKey(String("doc-1"))},
		{"nested", []string{"/tenant/name"}, NewKey(String("acme"))},
		{"escaped segment", []string{`/tenant/"zip code"`}, NewKey(Number(12345))},
		{"boolean", []string{"/tenant/active"}, NewKey(TrueComponent)},
		{"null", []string{"/deleted"}, NewKey(NullComponent)},
		{"missing", []string{"/nope"}, NewKey(UndefinedComponent)},
		{"array leaf", []string{"/tags"}, NewKey(UndefinedComponent)},
		{"object leaf", []string{"/meta"}, NewKey(UndefinedComponent)},
		{"multiple paths", []string{"/id", "/tenant/name"}, NewKey(String("doc-1"), String("acme"))},
		{"bracket property", []string{"/[0]"}, NewKey(String("bracket"))},
		{"nested bracket property", []string{"/meta/[1]"}, NewKey(Number(7))},
		{"no array indexing", []string{"/tags/[0]"}, NewKey(UndefinedComponent)},
		{"missing bracket property", []string{"/meta/[0]"}, NewKey(UndefinedComponent)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ExtractPartitionKeyValue(doc, &Definition{Paths: tt.paths})
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(k), "want %s got %s", tt.want, k)
		})
	}
}

func TestExtractWithoutDefinition(t *testing.T) {
	k, err := ExtractPartitionKeyValue([]byte(`{"id":"a"}`), nil)
	require.NoError(t, err)
	assert.True(t, k.IsEmpty())
}

func TestExtractMalformedPath(t *testing.T) {
	_, err := ExtractPartitionKeyValue([]byte(`{"id":"a"}`), &Definition{Paths: []string{"id"}})
	assert.True(t, dberr.Is(err, dberr.ErrMalformedPath))
}
