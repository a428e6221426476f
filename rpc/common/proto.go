package common

import (
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/goccy/go-json"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses
// between a client and a replica. Which fields are used depends on the type of message.
type Message struct {
	// Type of message, the operation for requests
	MsgType MessageType `json:"msg_type"`

	// Request only fields
	ResourceType uint8  `json:"resourceType,omitempty"` // resource.Type of the addressed resource
	Address      string `json:"address,omitempty"`      // resource address, e.g. dbs/db1/colls/c1/docs/d1

	// General fields
	Headers map[string]string `json:"headers,omitempty"` // lower case header names
	Body    []byte            `json:"body,omitempty"`    // document or feed payload

	// Response only fields
	Status int    `json:"status,omitempty"` // status code of the replica
	Err    string `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewStoreRequest creates a request for a replica
func NewStoreRequest(op resource.OperationType, typ resource.Type, address string, headers map[string]string, body []byte) *Message {
	return &Message{
		MsgType:      MessageTypeOf(op),
		ResourceType: uint8(typ),
		Address:      address,
		Headers:      headers,
		Body:         body,
	}
}

// NewStoreResponse creates a successful response
func NewStoreResponse(status int, headers map[string]string, body []byte) *Message {
	return &Message{
		MsgType: MsgTSuccess,
		Status:  status,
		Headers: headers,
		Body:    body,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(status int, headers map[string]string, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Status:  status,
		Headers: headers,
		Err:     err,
	}
}

// IsRequest reports whether the message carries an operation
func (m *Message) IsRequest() bool {
	return m.MsgType > MsgTError && m.MsgType <= MsgTExecuteJavaScript
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Replica operations

	MsgTCreate
	MsgTRead
	MsgTReadFeed
	MsgTReplace
	MsgTUpsert
	MsgTDelete
	MsgTRecreate
	MsgTQuery
	MsgTSqlQuery
	MsgTHead
	MsgTHeadFeed
	MsgTExecuteJavaScript
)

var msgTypeNames = map[MessageType]string{
	MsgTSuccess:           "success",
	MsgTError:             "error",
	MsgTCreate:            "create",
	MsgTRead:              "read",
	MsgTReadFeed:          "readFeed",
	MsgTReplace:           "replace",
	MsgTUpsert:            "upsert",
	MsgTDelete:            "delete",
	MsgTRecreate:          "recreate",
	MsgTQuery:             "query",
	MsgTSqlQuery:          "sqlQuery",
	MsgTHead:              "head",
	MsgTHeadFeed:          "headFeed",
	MsgTExecuteJavaScript: "executeJavaScript",
}

var opMsgTypes = map[resource.OperationType]MessageType{
	resource.OpCreate:            MsgTCreate,
	resource.OpRead:              MsgTRead,
	resource.OpReadFeed:          MsgTReadFeed,
	resource.OpReplace:           MsgTReplace,
	resource.OpUpsert:            MsgTUpsert,
	resource.OpDelete:            MsgTDelete,
	resource.OpRecreate:          MsgTRecreate,
	resource.OpQuery:             MsgTQuery,
	resource.OpSqlQuery:          MsgTSqlQuery,
	resource.OpHead:              MsgTHead,
	resource.OpHeadFeed:          MsgTHeadFeed,
	resource.OpExecuteJavaScript: MsgTExecuteJavaScript,
}

// MessageTypeOf returns the message type of an operation, MsgTUnknown if the
// operation cannot be sent to a replica
func MessageTypeOf(op resource.OperationType) MessageType {
	return opMsgTypes[op]
}

// Operation returns the operation of a request message type
func (t MessageType) Operation() (resource.OperationType, bool) {
	for op, mt := range opMsgTypes {
		if mt == t {
			return op, true
		}
	}
	return resource.OpUnknown, false
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	for mt, name := range msgTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}
