package address

import (
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// Info is the address of one replica
type Info struct {
	PhysicalURI string `json:"physicalUri"`
	IsPrimary   bool   `json:"isPrimary"`
	IsPublic    bool   `json:"isPublic,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	RangeID     string `json:"partitionKeyRangeId,omitempty"`
}

// Set is an immutable snapshot of the addresses of one replica set
type Set struct {
	Addresses []Info
}

// Len returns the number of addresses
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Addresses)
}

// URIs returns the physical URIs, optionally without the primary
func (s *Set) URIs(includePrimary bool) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Addresses))
	for _, a := range s.Addresses {
		if a.IsPrimary && !includePrimary {
			continue
		}
		out = append(out, a.PhysicalURI)
	}
	return out
}

// Primary returns the URI of the primary replica. A replica set without a
// primary is Gone.
func (s *Set) Primary() (string, error) {
	if s != nil {
		for _, a := range s.Addresses {
			if a.IsPrimary {
				return a.PhysicalURI, nil
			}
		}
	}
	return "", dberr.Gone("the requested resource is no longer available at the server: no primary replica")
}

// Filter drops addresses with an empty URI or another protocol and prefers
// internal addresses over public ones
func Filter(addresses []Info, protocol string) []Info {
	var internal, public []Info
	for _, a := range addresses {
		if a.PhysicalURI == "" {
			continue
		}
		if protocol != "" && a.Protocol != "" && !strings.EqualFold(a.Protocol, protocol) {
			continue
		}
		if a.IsPublic {
			public = append(public, a)
		} else {
			internal = append(internal, a)
		}
	}
	if len(internal) > 0 {
		return internal
	}
	return public
}

// IsReadingFromMaster reports whether the addresses of a request are those of
// the master partition rather than a partition of a collection
func IsReadingFromMaster(t resource.Type, op resource.OperationType) bool {
	switch t {
	case resource.TypeOffer, resource.TypeDatabase, resource.TypeUser, resource.TypePermission,
		resource.TypeTopology, resource.TypeDatabaseAccount, resource.TypePartitionKeyRange:
		return true
	case resource.TypeCollection:
		switch op {
		case resource.OpReadFeed, resource.OpQuery, resource.OpSqlQuery:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// LookupKey returns the address cache key of a request. Master resources are
// keyed by the ids of their database, collection, permission and user; all
// other requests by collection and partition key range.
func LookupKey(req *resource.Request) (string, error) {
	if IsReadingFromMaster(req.ResourceType, req.Operation) {
		p, err := resource.ParsePath(req.ResourceAddress)
		if err != nil {
			return "", err
		}
		return strings.Join([]string{
			p.IDOf(resource.TypeDatabase),
			p.IDOf(resource.TypeCollection),
			p.IDOf(resource.TypePermission),
			p.IDOf(resource.TypeUser),
		}, "|"), nil
	}

	rid := req.Context.ResolvedCollectionRID
	r := req.Context.ResolvedRange
	if rid == "" || r == nil {
		return "", dberr.Internal("address lookup of "+req.ResourceAddress+" before its partition was resolved", nil)
	}
	return rid + "/" + r.ID, nil
}
