package resource

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
)

// --------------------------------------------------------------------------
// Resource types
// --------------------------------------------------------------------------

// Type is the type of resource an operation addresses
type Type uint8

const (
	TypeUnknown Type = iota
	TypeDatabase
	TypeCollection
	TypeDocument
	TypeAttachment
	TypeStoredProcedure
	TypeTrigger
	TypeUserDefinedFunction
	TypeConflict
	TypeOffer
	TypeUser
	TypePermission
	TypePartitionKeyRange
	TypeTopology
	TypeDatabaseAccount
	TypeAddress
)

var typeNames = map[Type]string{
	TypeUnknown:             "Unknown",
	TypeDatabase:            "Database",
	TypeCollection:          "DocumentCollection",
	TypeDocument:            "Document",
	TypeAttachment:          "Attachment",
	TypeStoredProcedure:     "StoredProcedure",
	TypeTrigger:             "Trigger",
	TypeUserDefinedFunction: "UserDefinedFunction",
	TypeConflict:            "Conflict",
	TypeOffer:               "Offer",
	TypeUser:                "User",
	TypePermission:          "Permission",
	TypePartitionKeyRange:   "PartitionKeyRange",
	TypeTopology:            "Topology",
	TypeDatabaseAccount:     "DatabaseAccount",
	TypeAddress:             "Address",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// PathSegment returns the segment naming the resource type in resource paths
// ("docs" in dbs/db1/colls/c1/docs/d1). The database account has none.
func (t Type) PathSegment() string {
	switch t {
	case TypeDatabase:
		return "dbs"
	case TypeCollection:
		return "colls"
	case TypeDocument:
		return "docs"
	case TypeAttachment:
		return "attachments"
	case TypeStoredProcedure:
		return "sprocs"
	case TypeTrigger:
		return "triggers"
	case TypeUserDefinedFunction:
		return "udfs"
	case TypeConflict:
		return "conflicts"
	case TypeOffer:
		return "offers"
	case TypeUser:
		return "users"
	case TypePermission:
		return "permissions"
	case TypePartitionKeyRange:
		return "pkranges"
	case TypeTopology:
		return "topology"
	case TypeAddress:
		return "addresses"
	case TypeDatabaseAccount, TypeUnknown:
		return ""
	default:
		return ""
	}
}

// TypeFromPathSegment is the inverse of PathSegment
func TypeFromPathSegment(segment string) (Type, bool) {
	for t := TypeDatabase; t <= TypeAddress; t++ {
		if s := t.PathSegment(); s != "" && s == segment {
			return t, true
		}
	}
	return TypeUnknown, false
}

// IsPartitioned reports whether resources of type t live inside a partition of
// a collection
func (t Type) IsPartitioned() bool {
	switch t {
	case TypeDocument, TypeAttachment, TypeConflict:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Operation types
// --------------------------------------------------------------------------

// OperationType is the kind of operation performed on a resource
type OperationType uint8

const (
	OpUnknown OperationType = iota
	OpCreate
	OpRead
	OpReadFeed
	OpReplace
	OpUpsert
	OpDelete
	OpRecreate
	OpQuery
	OpSqlQuery
	OpHead
	OpHeadFeed
	OpExecuteJavaScript
)

var opNames = map[OperationType]string{
	OpUnknown:           "Unknown",
	OpCreate:            "Create",
	OpRead:              "Read",
	OpReadFeed:          "ReadFeed",
	OpReplace:           "Replace",
	OpUpsert:            "Upsert",
	OpDelete:            "Delete",
	OpRecreate:          "Recreate",
	OpQuery:             "Query",
	OpSqlQuery:          "SqlQuery",
	OpHead:              "Head",
	OpHeadFeed:          "HeadFeed",
	OpExecuteJavaScript: "ExecuteJavaScript",
}

func (o OperationType) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OperationType(%d)", uint8(o))
}

// ParseOperationType parses the name of an operation, case insensitive
func ParseOperationType(s string) (OperationType, bool) {
	for op, name := range opNames {
		if op != OpUnknown && strings.EqualFold(name, s) {
			return op, true
		}
	}
	return OpUnknown, false
}

// IsWrite reports whether the operation must be served by the primary replica
func (o OperationType) IsWrite() bool {
	switch o {
	case OpCreate, OpReplace, OpUpsert, OpDelete, OpRecreate, OpExecuteJavaScript:
		return true
	case OpRead, OpReadFeed, OpQuery, OpSqlQuery, OpHead, OpHeadFeed, OpUnknown:
		return false
	default:
		return false
	}
}

// IsFeed reports whether the operation reads a feed (several resources)
func (o OperationType) IsFeed() bool {
	switch o {
	case OpReadFeed, OpQuery, OpSqlQuery, OpHeadFeed:
		return true
	default:
		return false
	}
}

// HTTPMethod returns the verb of the operation in the gateway protocol, it is
// also the verb signed by the authorization token
func (o OperationType) HTTPMethod() string {
	switch o {
	case OpCreate, OpUpsert, OpQuery, OpSqlQuery, OpExecuteJavaScript:
		return "POST"
	case OpRead, OpReadFeed:
		return "GET"
	case OpReplace, OpRecreate:
		return "PUT"
	case OpDelete:
		return "DELETE"
	case OpHead, OpHeadFeed:
		return "HEAD"
	case OpUnknown:
		return ""
	default:
		return ""
	}
}

// --------------------------------------------------------------------------
// Consistency levels
// --------------------------------------------------------------------------

// ConsistencyLevel is the read guarantee requested by the client
type ConsistencyLevel uint8

const (
	ConsistencyStrong ConsistencyLevel = iota
	ConsistencyBoundedStaleness
	ConsistencySession
	ConsistencyEventual
	ConsistencyConsistentPrefix
)

var consistencyNames = map[ConsistencyLevel]string{
	ConsistencyStrong:           "Strong",
	ConsistencyBoundedStaleness: "BoundedStaleness",
	ConsistencySession:          "Session",
	ConsistencyEventual:         "Eventual",
	ConsistencyConsistentPrefix: "ConsistentPrefix",
}

func (c ConsistencyLevel) String() string {
	if name, ok := consistencyNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ConsistencyLevel(%d)", uint8(c))
}

// ParseConsistencyLevel parses a level name, case insensitive
func ParseConsistencyLevel(s string) (ConsistencyLevel, error) {
	for level, name := range consistencyNames {
		if strings.EqualFold(name, s) {
			return level, nil
		}
	}
	return ConsistencySession, dberr.Client(dberr.ErrInvalidArgument, "unknown consistency level %q", s)
}

// RequiresQuorum reports whether reads need the quorum protocol
func (c ConsistencyLevel) RequiresQuorum() bool {
	return c == ConsistencyStrong || c == ConsistencyBoundedStaleness
}
