package fakes

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
)

// replica is the state of one fake replica
type replica struct {
	lsn      int64
	failures []error
}

// Store is an in memory replica fleet. All replicas share one document store
// per partition; LSNs are tracked per replica so tests can make replicas lag.
type Store struct {
	mu       sync.Mutex
	replicas map[string]*replica
	docs     map[string]map[string][]byte
	calls    map[string]int
	seen     []*resource.Request
}

// NewStore creates a store without replicas
func NewStore() *Store {
	return &Store{
		replicas: map[string]*replica{},
		docs:     map[string]map[string][]byte{},
		calls:    map[string]int{},
	}
}

// AddReplica registers a replica at uri with the given LSN
func (s *Store) AddReplica(uri string, lsn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas[uri] = &replica{lsn: lsn}
}

// SetLSN sets the LSN of a replica
func (s *Store) SetLSN(uri string, lsn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas[uri].lsn = lsn
}

// LSN returns the LSN of a replica
func (s *Store) LSN(uri string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replicas[uri].lsn
}

// FailNext makes the next calls to uri fail with errs, in order
func (s *Store) FailNext(uri string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replicas[uri].failures = append(s.replicas[uri].failures, errs...)
}

// Calls returns how often uri was invoked
func (s *Store) Calls(uri string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[uri]
}

// TotalCalls returns the number of invocations over all replicas
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Seen returns copies of all requests the store received
func (s *Store) Seen() []*resource.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*resource.Request(nil), s.seen...)
}

// SplitRange moves the documents of collectionLink stored in the parent range
// to the child whose effective partition key range contains them
func (s *Store) SplitRange(collectionLink string, def *pkey.Definition, parent string, children ...routing.PartitionKeyRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.Trim(collectionLink, "/") + "/docs/"
	for address, doc := range s.docs[parent] {
		if !strings.HasPrefix(address, prefix) {
			continue
		}
		k, err := pkey.ExtractPartitionKeyValue(doc, def)
		if err != nil {
			return err
		}
		epk, err := pkey.EffectivePartitionKeyString(k, def)
		if err != nil {
			return err
		}
		moved := false
		for _, child := range children {
			if child.ToRange().Contains(epk) {
				if s.docs[child.ID] == nil {
					s.docs[child.ID] = map[string][]byte{}
				}
				s.docs[child.ID][address] = doc
				moved = true
				break
			}
		}
		if !moved {
			return dberr.Internal("no child of range "+parent+" contains "+epk, nil)
		}
		delete(s.docs[parent], address)
	}
	return nil
}

// Invoke serves a request at the replica uri
func (s *Store) Invoke(_ context.Context, uri string, req *resource.Request) (*resource.StoreResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[uri]++
	s.seen = append(s.seen, req.Clone())

	r, ok := s.replicas[uri]
	if !ok {
		return nil, dberr.Gone("no replica at " + uri)
	}
	if len(r.failures) > 0 {
		err := r.failures[0]
		r.failures = r.failures[1:]
		return nil, err
	}

	rangeID := "0"
	if req.Context.ResolvedRange != nil {
		rangeID = req.Context.ResolvedRange.ID
	}

	if token := req.Headers.Get(resource.HeaderSessionToken); token != "" && !req.Operation.IsWrite() {
		if idx := strings.LastIndexByte(token, ':'); idx > 0 {
			if want, err := strconv.ParseInt(token[idx+1:], 10, 64); err == nil && want > r.lsn {
				return nil, dberr.FromResponse(dberr.StatusNotFound, map[string]string{
					dberr.HeaderSubStatus:     strconv.Itoa(int(dberr.SubStatusReadSessionNotAvailable)),
					dberr.HeaderRequestCharge: "1",
				}, "read session not available")
			}
		}
	}

	status := dberr.StatusOK
	var body []byte
	var continuation string

	switch req.Operation {
	case resource.OpCreate, resource.OpUpsert, resource.OpReplace, resource.OpRecreate:
		id, err := jsonparser.GetString(req.Body, "id")
		if err != nil {
			return nil, dberr.New(dberr.StatusBadRequest, dberr.SubStatusUnknown, "document without id")
		}
		address := strings.TrimSuffix(req.ResourceAddress, "/"+id)
		address = strings.TrimSuffix(address, "/docs") + "/docs/" + id
		if s.docs[rangeID] == nil {
			s.docs[rangeID] = map[string][]byte{}
		}
		_, exists := s.docs[rangeID][address]
		if req.Operation == resource.OpCreate && exists {
			return nil, dberr.New(dberr.StatusConflict, dberr.SubStatusUnknown, "document exists")
		}
		s.docs[rangeID][address] = append([]byte(nil), req.Body...)
		s.bumpLSN()
		status, body = dberr.StatusCreated, req.Body

	case resource.OpDelete:
		if _, ok := s.docs[rangeID][req.ResourceAddress]; !ok {
			return nil, dberr.NotFound("document not found")
		}
		delete(s.docs[rangeID], req.ResourceAddress)
		s.bumpLSN()
		status = dberr.StatusNoContent

	case resource.OpRead:
		doc, ok := s.docs[rangeID][req.ResourceAddress]
		if !ok {
			return nil, dberr.FromResponse(dberr.StatusNotFound, map[string]string{
				resource.HeaderLSN: strconv.FormatInt(r.lsn, 10),
			}, "document not found")
		}
		body = doc

	case resource.OpQuery, resource.OpSqlQuery, resource.OpReadFeed:
		body, continuation = s.page(rangeID, req)

	case resource.OpHead, resource.OpHeadFeed:
	}

	resp := &resource.StoreResponse{
		Status: status,
		Body:   body,
		Headers: resource.Headers{
			resource.HeaderLSN:                   strconv.FormatInt(s.replicas[uri].lsn, 10),
			resource.HeaderQuorumAckedLSN:        strconv.FormatInt(s.replicas[uri].lsn, 10),
			resource.HeaderCurrentReplicaSetSize: strconv.Itoa(len(s.replicas)),
			resource.HeaderCurrentWriteQuorum:    strconv.Itoa(len(s.replicas)/2 + 1),
			resource.HeaderRequestCharge:         "1",
			resource.HeaderPartitionKeyRangeID:   rangeID,
			resource.HeaderSessionToken:          rangeID + ":" + strconv.FormatInt(s.replicas[uri].lsn, 10),
		},
	}
	if continuation != "" {
		resp.Headers.Set(resource.HeaderContinuation, continuation)
	}
	return resp, nil
}

// bumpLSN advances every replica, writes are replicated synchronously
func (s *Store) bumpLSN() {
	for _, r := range s.replicas {
		r.lsn++
	}
}

type feedPage struct {
	Documents []json.RawMessage `json:"Documents"`
	Count     int               `json:"_count"`
}

// page returns the documents of the feed address in a partition sorted by
// address, honouring the max item count. The continuation is the quoted
// address of the last document returned.
func (s *Store) page(rangeID string, req *resource.Request) ([]byte, string) {
	prefix := strings.Trim(req.ResourceAddress, "/") + "/"
	addresses := make([]string, 0, len(s.docs[rangeID]))
	for a := range s.docs[rangeID] {
		if strings.HasPrefix(a, prefix) {
			addresses = append(addresses, a)
		}
	}
	sort.Strings(addresses)

	start := 0
	if after, err := strconv.Unquote(req.Headers.Get(resource.HeaderContinuation)); err == nil {
		start = sort.SearchStrings(addresses, after)
		if start < len(addresses) && addresses[start] == after {
			start++
		}
	}
	limit, err := strconv.Atoi(req.Headers.Get(resource.HeaderMaxItemCount))
	if err != nil || limit <= 0 {
		limit = len(addresses)
	}

	page := feedPage{Documents: []json.RawMessage{}}
	end := min(start+limit, len(addresses))
	for _, a := range addresses[start:end] {
		page.Documents = append(page.Documents, s.docs[rangeID][a])
	}
	page.Count = len(page.Documents)

	body, _ := json.Marshal(page)
	if end < len(addresses) {
		return body, strconv.Quote(addresses[end-1])
	}
	return body, ""
}
