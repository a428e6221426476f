package server

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/session"
	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryReplicas is an in memory IReplicaHandler for development and tests.
// Writes are applied to all replicas at once, so every replica of a
// partition reports the same LSN.
type MemoryReplicas struct {
	replicas   int
	partitions *xsync.MapOf[string, *partition]
}

// partition holds the documents of one partition key range of a collection
type partition struct {
	mu   sync.Mutex
	lsn  int64
	docs map[string]storedDoc
}

type storedDoc struct {
	body []byte
	lsn  int64
}

// feedPage is the body of feed and query responses
type feedPage struct {
	Documents []json.RawMessage `json:"Documents"`
	Count     int               `json:"_count"`
}

// NewMemoryReplicas creates an empty replica set of the given size
func NewMemoryReplicas(replicas int) *MemoryReplicas {
	if replicas < 1 {
		replicas = 1
	}
	return &MemoryReplicas{
		replicas:   replicas,
		partitions: xsync.NewMapOf[string, *partition](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IReplicaHandler)
// --------------------------------------------------------------------------

func (m *MemoryReplicas) Handle(ctx context.Context, _ uint64, req *resource.Request) (*resource.StoreResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, dberr.New(dberr.StatusRequestTimeout, dberr.SubStatusUnknown, err.Error())
	}

	path, err := resource.ParsePath(req.ResourceAddress)
	if err != nil {
		return nil, err
	}
	collection := path.CollectionLink()
	if collection == "" {
		return nil, dberr.Newf(dberr.StatusBadRequest, dberr.SubStatusUnknown, "address %q is not inside a collection", req.ResourceAddress)
	}

	rangeID := req.Headers.Get(resource.HeaderPartitionKeyRangeID)
	if rangeID == "" {
		rangeID = "0"
	}
	p := m.partition(collection, rangeID)

	p.mu.Lock()
	defer p.mu.Unlock()

	// reads with a session token must observe the token's LSN
	if token := req.Headers.Get(resource.HeaderSessionToken); token != "" && !req.Operation.IsWrite() {
		if t, err := session.ParseToken(token); err == nil && !t.IsSatisfiedBy(p.lsn) {
			return nil, dberr.FromResponse(dberr.StatusNotFound, map[string]string{
				dberr.HeaderSubStatus:     strconv.Itoa(int(dberr.SubStatusReadSessionNotAvailable)),
				dberr.HeaderRequestCharge: "1",
				resource.HeaderLSN:        strconv.FormatInt(p.lsn, 10),
			}, "read session not available")
		}
	}

	status := dberr.StatusOK
	var body []byte
	var continuation string
	itemLSN := int64(-1)

	switch req.Operation {
	case resource.OpCreate, resource.OpUpsert, resource.OpReplace, resource.OpRecreate:
		id, err := jsonparser.GetString(req.Body, "id")
		if err != nil || id == "" {
			return nil, dberr.New(dberr.StatusBadRequest, dberr.SubStatusUnknown, "document has no id")
		}
		_, exists := p.docs[id]
		switch {
		case req.Operation == resource.OpCreate && exists:
			return nil, dberr.Newf(dberr.StatusConflict, dberr.SubStatusUnknown, "document %s already exists", id)
		case req.Operation == resource.OpReplace && !exists:
			return nil, m.notFound(p, id)
		case exists:
			status = dberr.StatusOK
		default:
			status = dberr.StatusCreated
		}
		p.lsn++
		p.docs[id] = storedDoc{body: append([]byte(nil), req.Body...), lsn: p.lsn}
		body, itemLSN = req.Body, p.lsn

	case resource.OpDelete:
		id := path.ID()
		if _, ok := p.docs[id]; !ok {
			return nil, m.notFound(p, id)
		}
		p.lsn++
		delete(p.docs, id)
		status, itemLSN = dberr.StatusNoContent, p.lsn

	case resource.OpRead, resource.OpHead:
		id := path.ID()
		doc, ok := p.docs[id]
		if !ok {
			return nil, m.notFound(p, id)
		}
		if req.Operation == resource.OpRead {
			body = doc.body
		}
		itemLSN = doc.lsn

	case resource.OpReadFeed, resource.OpQuery, resource.OpSqlQuery:
		if body, continuation, err = p.page(req.Headers); err != nil {
			return nil, err
		}

	case resource.OpHeadFeed:

	default:
		return nil, dberr.Newf(dberr.StatusBadRequest, dberr.SubStatusUnknown, "operation %s is not supported", req.Operation)
	}

	resp := &resource.StoreResponse{
		Status:  status,
		Body:    body,
		Headers: m.headers(p, rangeID),
	}
	if itemLSN >= 0 {
		resp.Headers.Set(resource.HeaderItemLSN, strconv.FormatInt(itemLSN, 10))
		resp.Headers.Set(resource.HeaderETag, strconv.Quote(strconv.FormatInt(itemLSN, 10)))
	}
	if continuation != "" {
		resp.Headers.Set(resource.HeaderContinuation, continuation)
	}
	return resp, nil
}

// Documents returns the number of documents stored for a collection
func (m *MemoryReplicas) Documents(collection string) int {
	n := 0
	m.partitions.Range(func(key string, p *partition) bool {
		if len(key) > len(collection) && key[:len(collection)+1] == collection+"#" {
			p.mu.Lock()
			n += len(p.docs)
			p.mu.Unlock()
		}
		return true
	})
	return n
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// partition returns the partition rangeID of collection, creating it if needed
func (m *MemoryReplicas) partition(collection, rangeID string) *partition {
	p, _ := m.partitions.LoadOrCompute(collection+"#"+rangeID, func() *partition {
		return &partition{docs: map[string]storedDoc{}}
	})
	return p
}

// headers returns the replication headers every response carries
func (m *MemoryReplicas) headers(p *partition, rangeID string) resource.Headers {
	lsn := strconv.FormatInt(p.lsn, 10)
	return resource.Headers{
		resource.HeaderLSN:                   lsn,
		resource.HeaderQuorumAckedLSN:        lsn,
		resource.HeaderGlobalCommittedLSN:    lsn,
		resource.HeaderCurrentReplicaSetSize: strconv.Itoa(m.replicas),
		resource.HeaderCurrentWriteQuorum:    strconv.Itoa(m.replicas/2 + 1),
		resource.HeaderRequestCharge:         "1",
		resource.HeaderPartitionKeyRangeID:   rangeID,
		resource.HeaderSessionToken:          rangeID + ":" + lsn,
	}
}

// notFound creates a 404 that still reports the LSN of the replica
func (m *MemoryReplicas) notFound(p *partition, id string) error {
	return dberr.FromResponse(dberr.StatusNotFound, map[string]string{
		resource.HeaderLSN:        strconv.FormatInt(p.lsn, 10),
		dberr.HeaderRequestCharge: "1",
	}, "document "+id+" not found")
}

// page returns the documents sorted by id, honouring the max item count.
// The continuation is the quoted id of the last document returned, so it
// stays valid for the children of the range after a split.
func (p *partition) page(headers resource.Headers) ([]byte, string, error) {
	ids := make([]string, 0, len(p.docs))
	for id := range p.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if c := headers.Get(resource.HeaderContinuation); c != "" {
		after, err := strconv.Unquote(c)
		if err != nil {
			return nil, "", dberr.Client(dberr.ErrInvalidContinuationToken, "continuation %q", c)
		}
		start = sort.Search(len(ids), func(i int) bool { return ids[i] > after })
	}
	limit, err := strconv.Atoi(headers.Get(resource.HeaderMaxItemCount))
	if err != nil || limit <= 0 {
		limit = len(ids)
	}

	end := min(start+limit, len(ids))
	page := feedPage{Documents: []json.RawMessage{}}
	for _, id := range ids[start:end] {
		page.Documents = append(page.Documents, p.docs[id].body)
	}
	page.Count = len(page.Documents)

	body, err := json.Marshal(page)
	if err != nil {
		return nil, "", dberr.Internal("failed to encode feed page", err)
	}
	if end < len(ids) {
		return body, strconv.Quote(ids[end-1]), nil
	}
	return body, "", nil
}
