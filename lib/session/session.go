// Package session tracks the session tokens of a client.
//
// A session token is "<rangeID>:<lsn>", the highest LSN the client observed
// for a partition. Tokens of several partitions are comma joined. Reads under
// session consistency carry the partition local token so that a replica that
// has not caught up yet can refuse the read (404/1002).
package session

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/puzpuzpuz/xsync/v3"
)

// Token is the session token of one partition
type Token struct {
	RangeID string
	LSN     int64
}

func (t Token) String() string {
	return t.RangeID + ":" + strconv.FormatInt(t.LSN, 10)
}

// IsSatisfiedBy reports whether a replica at lsn has observed the token
func (t Token) IsSatisfiedBy(lsn int64) bool {
	return lsn >= t.LSN
}

// ParseToken parses "<rangeID>:<lsn>"
func ParseToken(s string) (Token, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return Token{}, dberr.Client(dberr.ErrInvalidArgument, "invalid session token %q", s)
	}
	lsn, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil || lsn < 0 {
		return Token{}, dberr.Client(dberr.ErrInvalidArgument, "invalid session token lsn %q", s)
	}
	return Token{RangeID: s[:idx], LSN: lsn}, nil
}

// ParseTokens parses a comma joined list of tokens. Duplicate ranges keep the
// highest LSN.
func ParseTokens(s string) (map[string]int64, error) {
	out := map[string]int64{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		t, err := ParseToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if cur, ok := out[t.RangeID]; !ok || t.LSN > cur {
			out[t.RangeID] = t.LSN
		}
	}
	return out, nil
}

// FormatTokens joins tokens sorted by range id
func FormatTokens(tokens map[string]int64) string {
	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = Token{RangeID: id, LSN: tokens[id]}.String()
	}
	return strings.Join(parts, ",")
}

// resolveFor picks the token of r from tokens, falling back to the highest
// token of its parents for ranges created by a split
func resolveFor(tokens map[string]int64, r *routing.PartitionKeyRange) (Token, bool) {
	if r == nil {
		return Token{}, false
	}
	if lsn, ok := tokens[r.ID]; ok {
		return Token{RangeID: r.ID, LSN: lsn}, true
	}
	found := false
	best := Token{RangeID: r.ID, LSN: -1}
	for _, parent := range r.Parents {
		if lsn, ok := tokens[parent]; ok && lsn > best.LSN {
			best.LSN = lsn
			found = true
		}
	}
	return best, found
}

// --------------------------------------------------------------------------
// Container
// --------------------------------------------------------------------------

// Container keeps the session tokens of all collections a client touched.
// Collections are keyed by resource id; name based links are mapped to it.
type Container struct {
	ridByName *xsync.MapOf[string, string]
	tokens    *xsync.MapOf[string, *xsync.MapOf[string, int64]]
}

// NewContainer creates an empty container
func NewContainer() *Container {
	return &Container{
		ridByName: xsync.NewMapOf[string, string](),
		tokens:    xsync.NewMapOf[string, *xsync.MapOf[string, int64]](),
	}
}

// SetSessionToken records the session token of a response to req. The
// collection must have been resolved for req.
func (c *Container) SetSessionToken(req *resource.Request, responseHeaders resource.Headers) {
	token := responseHeaders.Get(resource.HeaderSessionToken)
	rid := req.Context.ResolvedCollectionRID
	if token == "" || rid == "" {
		return
	}

	parsed, err := ParseTokens(token)
	if err != nil {
		return
	}

	if req.IsNameBased {
		if p, err := resource.ParsePath(req.ResourceAddress); err == nil && p.CollectionLink() != "" {
			c.ridByName.Store(p.CollectionLink(), rid)
		}
	}

	ranges, _ := c.tokens.LoadOrCompute(rid, func() *xsync.MapOf[string, int64] {
		return xsync.NewMapOf[string, int64]()
	})
	for id, lsn := range parsed {
		ranges.Compute(id, func(old int64, loaded bool) (int64, bool) {
			if loaded && old >= lsn {
				return old, false
			}
			return lsn, false
		})
	}
}

// ResolveGlobalToken returns the tokens of all partitions of a collection,
// given by resource id or name based link
func (c *Container) ResolveGlobalToken(collection string) string {
	ranges, ok := c.lookup(collection)
	if !ok {
		return ""
	}
	return FormatTokens(snapshot(ranges))
}

// ResolvePartitionLocalToken returns the token a read of range r has to
// observe. A token the caller set on the request takes precedence over the
// tokens tracked by the container.
func (c *Container) ResolvePartitionLocalToken(req *resource.Request, r *routing.PartitionKeyRange) (Token, bool, error) {
	if provided := req.Headers.Get(resource.HeaderSessionToken); provided != "" {
		tokens, err := ParseTokens(provided)
		if err != nil {
			return Token{}, false, err
		}
		t, ok := resolveFor(tokens, r)
		return t, ok, nil
	}

	collection := req.Context.ResolvedCollectionRID
	if collection == "" {
		collection = req.ResourceAddress
	}
	ranges, ok := c.lookup(collection)
	if !ok {
		return Token{}, false, nil
	}
	t, ok := resolveFor(snapshot(ranges), r)
	return t, ok, nil
}

// ClearToken forgets the tokens of a collection, e.g. after it was deleted
func (c *Container) ClearToken(collection string) {
	if rid, ok := c.ridByName.LoadAndDelete(collection); ok {
		collection = rid
	}
	c.tokens.Delete(collection)
}

func (c *Container) lookup(collection string) (*xsync.MapOf[string, int64], bool) {
	if ranges, ok := c.tokens.Load(collection); ok {
		return ranges, true
	}
	if p, err := resource.ParsePath(collection); err == nil && p.CollectionLink() != "" {
		collection = p.CollectionLink()
	}
	if rid, ok := c.ridByName.Load(collection); ok {
		return c.tokens.Load(rid)
	}
	return nil, false
}

func snapshot(m *xsync.MapOf[string, int64]) map[string]int64 {
	out := make(map[string]int64, m.Size())
	m.Range(func(k string, v int64) bool {
		out[k] = v
		return true
	})
	return out
}
