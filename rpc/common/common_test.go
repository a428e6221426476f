package common

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/goccy/go-json"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageTypeOfOperation(t *testing.T) {
	for op := resource.OpCreate; op <= resource.OpExecuteJavaScript; op++ {
		mt := MessageTypeOf(op)
		require.NotEqual(t, MsgTUnknown, mt, op.String())

		back, ok := mt.Operation()
		require.True(t, ok)
		assert.Equal(t, op, back)

		msg := NewStoreRequest(op, resource.TypeDocument, "dbs/db/colls/c/docs/d", nil, nil)
		assert.True(t, msg.IsRequest())
	}

	_, ok := MsgTSuccess.Operation()
	assert.False(t, ok)
	assert.False(t, NewStoreResponse(200, nil, nil).IsRequest())
	assert.False(t, NewErrorResponse(410, nil, "gone").IsRequest())
}

func TestMessageTypeJSON(t *testing.T) {
	data, err := json.Marshal(MsgTReadFeed)
	require.NoError(t, err)
	assert.Equal(t, `"readFeed"`, string(data))

	var mt MessageType
	require.NoError(t, json.Unmarshal(data, &mt))
	assert.Equal(t, MsgTReadFeed, mt)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &mt))
}

func TestClientConfigPolicyOptions(t *testing.T) {
	config := DefaultClientConfig()

	opts := config.RetryPolicyOptions()
	assert.Equal(t, 30*time.Second, opts.GoneWindow)
	assert.Equal(t, time.Second, opts.GoneInitialBackoff)
	assert.Equal(t, 15*time.Second, opts.GoneMaxBackoff)
	assert.Equal(t, 120, opts.EndpointDiscoveryMaxRetries)
	assert.Equal(t, time.Second, opts.EndpointDiscoveryInterval)
	assert.Equal(t, 1, opts.SessionMaxRetries)
	assert.Equal(t, 9, opts.ThrottleMaxRetries)
	assert.Equal(t, 30*time.Second, opts.ThrottleMaxWait)
	assert.True(t, opts.EnableEndpointDiscovery)

	config.EnableEndpointDiscovery = false
	config.MaxReplicaSetSize = 3
	assert.False(t, config.RetryPolicyOptions().EnableEndpointDiscovery)
	assert.Equal(t, 3, config.QuorumOptions().MaxReplicaSetSize)

	_, ok, err := config.Consistency()
	require.NoError(t, err)
	assert.False(t, ok)

	config.ConsistencyLevel = "Session"
	level, ok, err := config.Consistency()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, resource.ConsistencySession, level)

	config.ConsistencyLevel = "Sometimes"
	_, _, err = config.Consistency()
	assert.Error(t, err)
}

func TestClientConfigStringMasksKey(t *testing.T) {
	config := DefaultClientConfig()
	config.MasterKey = "c2VjcmV0"
	out := config.String()
	assert.Contains(t, out, "<set>")
	assert.NotContains(t, out, "c2VjcmV0")
	assert.Contains(t, out, "RETRY POLICIES")
}

func TestLoggers(t *testing.T) {
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, lvl)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stdout)

	l := CreateLogger("replica")
	l.Debugf("hidden")
	l.Infof("visible %d", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible 1")
	assert.Contains(t, buf.String(), "pkg=replica")
}
