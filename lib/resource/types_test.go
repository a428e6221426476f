package resource

import (
	"testing"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationClassification(t *testing.T) {
	tests := []struct {
		op     OperationType
		write  bool
		method string
	}{
		{OpCreate, true, "POST"},
		{OpUpsert, true, "POST"},
		{OpReplace, true, "PUT"},
		{OpRecreate, true, "PUT"},
		{OpDelete, true, "DELETE"},
		{OpExecuteJavaScript, true, "POST"},
		{OpRead, false, "GET"},
		{OpReadFeed, false, "GET"},
		{OpQuery, false, "POST"},
		{OpSqlQuery, false, "POST"},
		{OpHead, false, "HEAD"},
		{OpHeadFeed, false, "HEAD"},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.Equal(t, tt.write, tt.op.IsWrite())
			assert.Equal(t, tt.method, tt.op.HTTPMethod())

			parsed, ok := ParseOperationType(tt.op.String())
			require.True(t, ok)
			assert.Equal(t, tt.op, parsed)
		})
	}
}

func TestPathSegmentRoundTrip(t *testing.T) {
	for typ := TypeDatabase; typ <= TypeAddress; typ++ {
		segment := typ.PathSegment()
		if segment == "" {
			continue
		}
		parsed, ok := TypeFromPathSegment(segment)
		require.True(t, ok, segment)
		assert.Equal(t, typ, parsed)
	}
}

func TestParseConsistencyLevel(t *testing.T) {
	level, err := ParseConsistencyLevel("boundedstaleness")
	require.NoError(t, err)
	assert.Equal(t, ConsistencyBoundedStaleness, level)
	assert.True(t, level.RequiresQuorum())

	level, err = ParseConsistencyLevel("Session")
	require.NoError(t, err)
	assert.False(t, level.RequiresQuorum())

	_, err = ParseConsistencyLevel("linearizable")
	assert.True(t, dberr.Is(err, dberr.ErrInvalidArgument))
}
