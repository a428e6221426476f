// Package endpoint manages the regional endpoints of a database account.
//
// The manager reads the database account from the default endpoint, orders
// the writable and readable regions by the preferred locations of the client
// and routes requests to the first available one. Regions that failed are
// marked unavailable for a while and moved to the end of the lists.
package endpoint

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/cache"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
)

var Logger = logger.GetLogger("endpoint")

// DefaultUnavailabilityTTL is how long a failed region is avoided
const DefaultUnavailabilityTTL = 5 * time.Minute

// Location is one region of the account
type Location struct {
	Name     string `json:"name"`
	Endpoint string `json:"databaseAccountEndpoint"`
}

// DatabaseAccount is the subset of the account resource the client needs
type DatabaseAccount struct {
	ID                           string     `json:"id"`
	WritableLocations            []Location `json:"writableLocations"`
	ReadableLocations            []Location `json:"readableLocations"`
	EnableMultipleWriteLocations bool       `json:"enableMultipleWriteLocations"`
	ConsistencyPolicy            struct {
		DefaultConsistencyLevel string `json:"defaultConsistencyLevel"`
	} `json:"userConsistencyPolicy"`
}

// IAccountSource reads the database account through an endpoint
type IAccountSource interface {
	ReadDatabaseAccount(ctx context.Context, endpoint string) (*DatabaseAccount, error)
}

// Options configure a Manager
type Options struct {
	DefaultEndpoint         string
	PreferredLocations      []string
	EnableEndpointDiscovery bool
	UnavailabilityTTL       time.Duration
}

type unavailability struct {
	read, write bool
	since       time.Time
}

// Manager resolves the regional endpoint of requests
type Manager struct {
	opts        Options
	source      IAccountSource
	account     atomic.Pointer[DatabaseAccount]
	accounts    *cache.AsyncCache[string, *DatabaseAccount]
	unavailable *xsync.MapOf[string, unavailability]
	now         func() time.Time
}

// NewManager creates a manager. Until the first Refresh all requests go to
// the default endpoint.
func NewManager(opts Options, source IAccountSource, collector *stats.Collector) *Manager {
	if opts.UnavailabilityTTL <= 0 {
		opts.UnavailabilityTTL = DefaultUnavailabilityTTL
	}
	return &Manager{
		opts:        opts,
		source:      source,
		accounts:    cache.NewAsyncCache[string, *DatabaseAccount]("accounts", collector),
		unavailable: xsync.NewMapOf[string, unavailability](),
		now:         time.Now,
	}
}

// Refresh reads the database account again. Concurrent refreshes share one read.
func (m *Manager) Refresh(ctx context.Context) error {
	current, _ := m.accounts.TryGet(m.opts.DefaultEndpoint)
	account, err := m.accounts.Get(ctx, m.opts.DefaultEndpoint, current, func(ctx context.Context) (*DatabaseAccount, error) {
		return m.source.ReadDatabaseAccount(ctx, m.opts.DefaultEndpoint)
	})
	if err != nil {
		Logger.Warningf("reading database account from %s failed: %v", m.opts.DefaultEndpoint, err)
		return err
	}
	m.account.Store(account)
	return nil
}

// Account returns the last read database account, nil before the first refresh
func (m *Manager) Account() *DatabaseAccount {
	return m.account.Load()
}

// ResolveServiceEndpoint returns the endpoint req is sent to
func (m *Manager) ResolveServiceEndpoint(req *resource.Request) string {
	if req.Context.LocationEndpointToRoute != "" {
		return req.Context.LocationEndpointToRoute
	}

	var endpoints []string
	if req.IsReadOnly() {
		endpoints = m.ReadEndpoints()
	} else {
		endpoints = m.WriteEndpoints()
	}
	if len(endpoints) == 0 {
		return m.opts.DefaultEndpoint
	}
	return endpoints[req.Context.LocationIndexToRoute%len(endpoints)]
}

// WriteEndpoints returns the writable regions in routing order
func (m *Manager) WriteEndpoints() []string {
	account := m.account.Load()
	if account == nil || !m.opts.EnableEndpointDiscovery {
		return []string{m.opts.DefaultEndpoint}
	}
	return m.order(account.WritableLocations, false)
}

// ReadEndpoints returns the readable regions in routing order
func (m *Manager) ReadEndpoints() []string {
	account := m.account.Load()
	if account == nil || !m.opts.EnableEndpointDiscovery {
		return []string{m.opts.DefaultEndpoint}
	}
	return m.order(account.ReadableLocations, true)
}

// CanUseMultipleWriteLocations reports whether writes may go to any region
func (m *Manager) CanUseMultipleWriteLocations() bool {
	account := m.account.Load()
	return account != nil && account.EnableMultipleWriteLocations
}

// MarkUnavailableForRead moves endpoint to the end of the read list
func (m *Manager) MarkUnavailableForRead(endpoint string) {
	m.mark(endpoint, true, false)
}

// MarkUnavailableForWrite moves endpoint to the end of the write list
func (m *Manager) MarkUnavailableForWrite(endpoint string) {
	m.mark(endpoint, false, true)
}

func (m *Manager) mark(endpoint string, read, write bool) {
	Logger.Infof("marking %s unavailable (read=%v, write=%v)", endpoint, read, write)
	now := m.now()
	m.unavailable.Compute(endpoint, func(old unavailability, loaded bool) (unavailability, bool) {
		if loaded && now.Sub(old.since) < m.opts.UnavailabilityTTL {
			old.read = old.read || read
			old.write = old.write || write
			old.since = now
			return old, false
		}
		return unavailability{read: read, write: write, since: now}, false
	})
}

// isUnavailable reports whether endpoint is marked and the mark did not expire.
// Expired marks are removed in the same step, a mark renewed meanwhile stays.
func (m *Manager) isUnavailable(endpoint string, forRead bool) bool {
	if _, ok := m.unavailable.Load(endpoint); !ok {
		return false
	}

	now := m.now()
	marked := false
	m.unavailable.Compute(endpoint, func(u unavailability, loaded bool) (unavailability, bool) {
		if !loaded || now.Sub(u.since) >= m.opts.UnavailabilityTTL {
			return u, true
		}
		if forRead {
			marked = u.read
		} else {
			marked = u.write
		}
		return u, false
	})
	return marked
}

// order lists the preferred locations first (in preference order), then the
// remaining ones in account order; unavailable endpoints go last
func (m *Manager) order(locations []Location, forRead bool) []string {
	byName := make(map[string]string, len(locations))
	for _, l := range locations {
		byName[l.Name] = l.Endpoint
	}

	seen := map[string]bool{}
	var ordered []string
	for _, name := range m.opts.PreferredLocations {
		if ep, ok := byName[name]; ok && !seen[ep] {
			ordered = append(ordered, ep)
			seen[ep] = true
		}
	}
	for _, l := range locations {
		if !seen[l.Endpoint] {
			ordered = append(ordered, l.Endpoint)
			seen[l.Endpoint] = true
		}
	}
	if len(ordered) == 0 {
		return []string{m.opts.DefaultEndpoint}
	}

	available := make([]string, 0, len(ordered))
	var unavailable []string
	for _, ep := range ordered {
		if m.isUnavailable(ep, forRead) {
			unavailable = append(unavailable, ep)
		} else {
			available = append(available, ep)
		}
	}
	return append(available, unavailable...)
}
