// Package registry implements the server-side provider/discoverer state
// machine, the client-side HostPool, and the Directory abstraction
// (implemented by the optional etcd-backed EtcdDirectory) that a server can
// advertise its services through.
package registry

import (
	"sync"

	"zrpc/dispatch"
	"zrpc/message"
)

// Provider is one (connection, host) registration; it lists every method
// that connection offers. Invariant: a connection maps to at most one
// Provider record.
type Provider struct {
	Conn    dispatch.Conn
	Host    message.Host
	Methods []string
}

// ProviderManager owns method→set<provider> and connection→provider.
type ProviderManager struct {
	mu          sync.Mutex
	byConn      map[dispatch.Conn]*Provider
	byMethod    map[string]map[dispatch.Conn]*Provider
}

// NewProviderManager creates an empty ProviderManager.
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		byConn:   make(map[dispatch.Conn]*Provider),
		byMethod: make(map[string]map[dispatch.Conn]*Provider),
	}
}

// CreateProvider is idempotent in conn: it finds or creates the provider
// record for conn, appends method to its method list (duplicates allowed —
// a re-registration simply appends rather than erroring), and indexes the
// provider under method.
func (m *ProviderManager) CreateProvider(conn dispatch.Conn, host message.Host, method string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byConn[conn]
	if !ok {
		p = &Provider{Conn: conn, Host: host}
		m.byConn[conn] = p
	}
	p.Methods = append(p.Methods, method)

	set, ok := m.byMethod[method]
	if !ok {
		set = make(map[dispatch.Conn]*Provider)
		m.byMethod[method] = set
	}
	set[conn] = p
}

// GetProvider returns the provider record for conn, if any.
func (m *ProviderManager) GetProvider(conn dispatch.Conn) (*Provider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byConn[conn]
	return p, ok
}

// DeleteProvider removes conn's provider record from every index, returning
// the removed record (callers use it to fan out OFFLINE notifications
// before the record disappears).
func (m *ProviderManager) DeleteProvider(conn dispatch.Conn) (*Provider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(m.byConn, conn)
	for _, method := range p.Methods {
		if set, ok := m.byMethod[method]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(m.byMethod, method)
			}
		}
	}
	return p, true
}

// HostsForMethod returns the addresses of every provider currently
// offering method, used to answer DISCOVERY queries.
func (m *ProviderManager) HostsForMethod(method string) []message.Host {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.byMethod[method]
	hosts := make([]message.Host, 0, len(set))
	for _, p := range set {
		hosts = append(hosts, p.Host)
	}
	return hosts
}
