package resource

import (
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
)

// Path is a parsed resource address like dbs/db1/colls/c1/docs/d1
type Path struct {
	// Segments alternate between type segment and id: [dbs db1 colls c1 docs d1].
	// A feed address ends with a type segment.
	Segments []string
}

// ParsePath splits an address into its segments. Leading and trailing
// slashes are ignored.
func ParsePath(address string) (Path, error) {
	trimmed := strings.Trim(address, "/")
	if trimmed == "" {
		return Path{}, nil
	}
	segments := strings.Split(trimmed, "/")
	for i, s := range segments {
		if s == "" {
			return Path{}, dberr.Client(dberr.ErrInvalidArgument, "address %q has an empty segment", address)
		}
		if i%2 == 0 {
			if _, ok := TypeFromPathSegment(s); !ok {
				return Path{}, dberr.Client(dberr.ErrInvalidArgument, "address %q: unknown resource segment %q", address, s)
			}
		}
	}
	return Path{Segments: segments}, nil
}

// IsFeed reports whether the path names a feed (ends with a type segment)
func (p Path) IsFeed() bool {
	return len(p.Segments)%2 == 1
}

// ResourceType returns the type of the addressed resource or feed
func (p Path) ResourceType() Type {
	if len(p.Segments) == 0 {
		return TypeDatabaseAccount
	}
	idx := len(p.Segments) - 1
	if !p.IsFeed() {
		idx--
	}
	t, _ := TypeFromPathSegment(p.Segments[idx])
	return t
}

// DatabaseLink returns dbs/<db>, "" if the path does not name a database
func (p Path) DatabaseLink() string {
	return p.prefix(TypeDatabase)
}

// CollectionLink returns dbs/<db>/colls/<coll>, "" if the path is not inside a collection
func (p Path) CollectionLink() string {
	return p.prefix(TypeCollection)
}

// ID returns the id of the addressed resource, "" for feeds
func (p Path) ID() string {
	if len(p.Segments) == 0 || p.IsFeed() {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// IDOf returns the id following the segment of t
func (p Path) IDOf(t Type) string {
	for i := 0; i+1 < len(p.Segments); i += 2 {
		if p.Segments[i] == t.PathSegment() {
			return p.Segments[i+1]
		}
	}
	return ""
}

func (p Path) prefix(t Type) string {
	for i := 0; i+1 < len(p.Segments); i += 2 {
		if p.Segments[i] == t.PathSegment() {
			return strings.Join(p.Segments[:i+2], "/")
		}
	}
	return ""
}

func (p Path) String() string {
	return strings.Join(p.Segments, "/")
}
