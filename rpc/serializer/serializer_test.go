package serializer

import (
	"testing"

	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
	"CBOR":   NewCBORSerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Create request
		*common.NewStoreRequest(resource.OpCreate, resource.TypeDocument, "dbs/db1/colls/c1/docs",
			map[string]string{
				resource.HeaderPartitionKey:        `["tenant-1"]`,
				resource.HeaderPartitionKeyRangeID: "0",
			},
			[]byte(`{"id":"d1","tenant":"tenant-1"}`)),

		// Read response
		*common.NewStoreResponse(200, map[string]string{
			resource.HeaderLSN:           "42",
			resource.HeaderSessionToken:  "0:42",
			resource.HeaderRequestCharge: "1.5",
		}, []byte(`{"id":"d1"}`)),

		// Error response
		*common.NewErrorResponse(410, map[string]string{resource.HeaderSubStatus: "1002"}, "partition key range is gone"),

		// Message with all fields filled
		{
			MsgType:      common.MsgTQuery,
			ResourceType: uint8(resource.TypeDocument),
			Address:      "dbs/db1/colls/c1/docs",
			Headers:      map[string]string{resource.HeaderContinuation: "5", resource.HeaderMaxItemCount: "10"},
			Body:         []byte(`SELECT * FROM c`),
			Status:       200,
			Err:          "partial",
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				require.NoError(t, err, "message %d", i)

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), "message %d", i)

				assert.Equal(t, msg, result, "message %d doesn't match after round trip", i)
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			// don't test for MsgTUnknown since the json codec rejects it
			for msgType := common.MsgTSuccess; msgType <= common.MsgTExecuteJavaScript; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				require.NoError(t, err, msgType.String())

				var result common.Message
				require.NoError(t, serializer.Deserialize(data, &result), msgType.String())
				assert.Equal(t, msgType, result.MsgType)
			}
		})
	}
}

// TestByName tests the serializer lookup used by the configuration
func TestByName(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob", "cbor", ""} {
		s, err := ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	_, err := ByName("xml")
	assert.Error(t, err)
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Message with empty body slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTUpsert,
				Address: "dbs/db1/colls/c1/docs",
				Body:    []byte{},
			},
		},
		{
			name: "Message with empty headers map but not nil",
			msg: common.Message{
				MsgType: common.MsgTRead,
				Headers: map[string]string{},
			},
		},
		{
			name: "Header with empty value",
			msg: common.Message{
				MsgType: common.MsgTRead,
				Headers: map[string]string{resource.HeaderSessionToken: ""},
			},
		},
		{
			name: "Negative status",
			msg: common.Message{
				MsgType: common.MsgTError,
				Status:  -1,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			require.NoError(t, err)

			var result common.Message
			require.NoError(t, serializer.Deserialize(data, &result))
			assert.Equal(t, tc.msg, result)
		})
	}
}

// TestBinarySerializerIsDeterministic tests that header order does not change the encoding
func TestBinarySerializerIsDeterministic(t *testing.T) {
	serializer := NewBinarySerializer()
	msg := common.Message{
		MsgType: common.MsgTRead,
		Headers: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"},
	}

	first, err := serializer.Serialize(msg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := serializer.Serialize(msg)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1}, // Only message type, no flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid length for address",
			data:        []byte{3, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims address length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Header count larger than data",
			data:        []byte{3, 4, 0, 0, 0, 9}, // Claims 9 headers but no bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for body",
			data:        []byte{3, 8, 0, 0, 0, 10}, // Claims body length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Missing status",
			data:        []byte{2, 16, 0, 0}, // Status needs 4 bytes
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
