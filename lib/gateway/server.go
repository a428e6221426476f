package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/collection"
	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/endpoint"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/routing"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// --------------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------------

// Catalog is the in memory metadata served by a Server
type Catalog struct {
	mu sync.RWMutex

	account     endpoint.DatabaseAccount
	collections map[string]*collection.Collection // by link and by rid
	ranges      map[string][]routing.PartitionKeyRange
	versions    map[string]int
	addresses   map[string][]address.Info // by rid/rangeID
	master      []address.Info
}

// NewCatalog creates a catalog of a single region account reachable at endpoint
func NewCatalog(accountID, endpointURL string) *Catalog {
	c := &Catalog{
		collections: map[string]*collection.Collection{},
		ranges:      map[string][]routing.PartitionKeyRange{},
		versions:    map[string]int{},
		addresses:   map[string][]address.Info{},
	}
	c.account.ID = accountID
	c.account.WritableLocations = []endpoint.Location{{Name: "local", Endpoint: endpointURL}}
	c.account.ReadableLocations = []endpoint.Location{{Name: "local", Endpoint: endpointURL}}
	return c
}

// SetAccount replaces the database account
func (c *Catalog) SetAccount(account endpoint.DatabaseAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.account = account
}

// AddCollection registers a collection. Without ranges the collection has the
// single range "0" spanning all keys.
func (c *Catalog) AddCollection(link, rid string, def *pkey.Definition, ranges ...routing.PartitionKeyRange) {
	link = strings.Trim(link, "/")
	if len(ranges) == 0 {
		ranges = []routing.PartitionKeyRange{{
			ID:           "0",
			MinInclusive: pkey.MinimumInclusiveEffectivePartitionKey,
			MaxExclusive: pkey.MaximumExclusiveEffectivePartitionKey,
		}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	coll := &collection.Collection{ID: link[strings.LastIndexByte(link, '/')+1:], ResourceID: rid, SelfLink: link, PartitionKey: def}
	c.collections[link] = coll
	c.collections[rid] = coll
	c.ranges[rid] = ranges
	c.versions[rid]++
}

// SetRanges replaces the partition key ranges of a collection, children of a
// split name their parents
func (c *Catalog) SetRanges(rid string, ranges []routing.PartitionKeyRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ranges[rid] = ranges
	c.versions[rid]++
}

// SetAddresses sets the replica addresses of a partition key range
func (c *Catalog) SetAddresses(rid, rangeID string, infos []address.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addresses[rid+"/"+rangeID] = infos
}

// SetMasterAddresses sets the replica addresses of the master partition
func (c *Catalog) SetMasterAddresses(infos []address.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.master = infos
}

// Collections returns the resource ids of all collections
func (c *Catalog) Collections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.ranges))
	for rid := range c.ranges {
		out = append(out, rid)
	}
	return out
}

// Ranges returns the partition key ranges of a collection
func (c *Catalog) Ranges(rid string) []routing.PartitionKeyRange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]routing.PartitionKeyRange(nil), c.ranges[rid]...)
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// IVerifier checks the authorization of a request
type IVerifier interface {
	Verify(verb, resourceIDOrFullName, resourceType string, headers resource.Headers) error
}

// Server serves a Catalog over the gateway routes
type Server struct {
	catalog  *Catalog
	verifier IVerifier
	router   *mux.Router

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a server. verifier may be nil to accept unsigned requests.
func NewServer(catalog *Catalog, verifier IVerifier) *Server {
	s := &Server{catalog: catalog, verifier: verifier, router: mux.NewRouter()}

	s.router.Use(s.loggerMiddleware)
	s.router.HandleFunc("/", s.handleAccount).Methods(http.MethodGet)
	s.router.HandleFunc("/addresses/", s.handleAddresses).Methods(http.MethodGet)
	s.router.HandleFunc("/colls/{rid}/pkranges", s.handleRanges).Methods(http.MethodGet)
	s.router.HandleFunc("/dbs/{db}/colls/{coll}", s.handleCollection).Methods(http.MethodGet)
	s.router.HandleFunc("/{rid}", s.handleCollection).Methods(http.MethodGet)
	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Listen serves on endpoint (host:port) until Close is called
func (s *Server) Listen(endpoint string) error {
	listener, err := net.Listen("tcp", endpoint)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	srv := s.server
	s.mu.Unlock()

	Logger.Infof("Starting gateway on %s", listener.Addr())
	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the listen address, nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the server
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// --------------------------------------------------------------------------
// Handlers
// --------------------------------------------------------------------------

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r, "", "") {
		return
	}
	s.catalog.mu.RLock()
	account := s.catalog.account
	s.catalog.mu.RUnlock()
	writeJSON(w, http.StatusOK, nil, account)
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	link := vars["rid"]
	if link == "" {
		link = "dbs/" + vars["db"] + "/colls/" + vars["coll"]
	}
	if !s.authorized(w, r, link, "colls") {
		return
	}

	s.catalog.mu.RLock()
	coll, ok := s.catalog.collections[link]
	s.catalog.mu.RUnlock()
	if !ok {
		writeError(w, dberr.NotFound("collection "+link+" not found"))
		return
	}
	writeJSON(w, http.StatusOK, nil, coll)
}

func (s *Server) handleRanges(w http.ResponseWriter, r *http.Request) {
	rid := mux.Vars(r)["rid"]
	if !s.authorized(w, r, rid, "pkranges") {
		return
	}

	s.catalog.mu.RLock()
	ranges, ok := s.catalog.ranges[rid]
	etag := strconv.Itoa(s.catalog.versions[rid])
	s.catalog.mu.RUnlock()

	if !ok {
		writeError(w, dberr.NotFound("collection "+rid+" not found"))
		return
	}
	if r.Header.Get(resource.HeaderIfNoneMatch) == etag {
		w.Header().Set(resource.HeaderETag, etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{resource.HeaderETag: etag}, rangeFeed{ResourceID: rid, Ranges: ranges, Count: len(ranges)})
}

func (s *Server) handleAddresses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resolveFor := query.Get("$resolveFor")

	rid, rangeID, partitioned := "", query.Get("$partitionKeyRangeIds"), false
	if parts := strings.Split(resolveFor, "/"); len(parts) == 3 && parts[0] == "colls" && parts[2] == "docs" {
		rid, partitioned = parts[1], true
	}

	resourceID := resolveFor
	if partitioned {
		resourceID = rid
	}
	if !s.authorized(w, r, resourceID, "docs") {
		return
	}

	s.catalog.mu.RLock()
	var infos []address.Info
	if partitioned {
		infos = s.catalog.addresses[rid+"/"+rangeID]
	} else {
		infos = s.catalog.master
	}
	s.catalog.mu.RUnlock()

	if infos == nil {
		infos = []address.Info{}
	}
	writeJSON(w, http.StatusOK, nil, addressFeed{Addresses: infos})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// authorized verifies the request signature, writing 401 if it does not match
func (s *Server) authorized(w http.ResponseWriter, r *http.Request, resourceID, resourceType string) bool {
	if s.verifier == nil {
		return true
	}
	if err := s.verifier.Verify(r.Method, resourceID, resourceType, headersOf(r.Header)); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		Logger.Debugf("%s %s took %s", r.Method, r.URL.RequestURI(), time.Since(start))
	})
}

// errorBody is the body of failed gateway responses
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	status := dberr.StatusCode(err)
	if status == 0 {
		status = dberr.StatusInternalServerError
	}
	headers := map[string]string{dberr.HeaderSubStatus: strconv.Itoa(int(dberr.SubStatusOf(err)))}
	writeJSON(w, status, headers, errorBody{Code: http.StatusText(status), Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, headers map[string]string, v any) {
	for k, val := range headers {
		w.Header().Set(k, val)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("Failed to write response: %v", err)
	}
}
