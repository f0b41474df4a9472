package registry

import (
	"sync"

	"github.com/google/uuid"

	"zrpc/dispatch"
	"zrpc/message"
)

// Discoverer is one client connection that has asked about at least one
// method; it lists the methods it is implicitly subscribed to for
// online/offline notifications.
type Discoverer struct {
	Conn    dispatch.Conn
	Methods map[string]struct{}
}

// DiscovererManager owns method→set<discoverer> and connection→discoverer,
// and fans out ONLINE/OFFLINE notifications.
type DiscovererManager struct {
	mu       sync.Mutex
	byConn   map[dispatch.Conn]*Discoverer
	byMethod map[string]map[dispatch.Conn]*Discoverer
}

// NewDiscovererManager creates an empty DiscovererManager.
func NewDiscovererManager() *DiscovererManager {
	return &DiscovererManager{
		byConn:   make(map[dispatch.Conn]*Discoverer),
		byMethod: make(map[string]map[dispatch.Conn]*Discoverer),
	}
}

// CreateDiscoverer finds or creates the discoverer record for conn and
// subscribes it to method.
func (m *DiscovererManager) CreateDiscoverer(conn dispatch.Conn, method string) *Discoverer {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.byConn[conn]
	if !ok {
		d = &Discoverer{Conn: conn, Methods: make(map[string]struct{})}
		m.byConn[conn] = d
	}
	d.Methods[method] = struct{}{}

	set, ok := m.byMethod[method]
	if !ok {
		set = make(map[dispatch.Conn]*Discoverer)
		m.byMethod[method] = set
	}
	set[conn] = d
	return d
}

// GetDiscoverer returns the discoverer record for conn, if any.
func (m *DiscovererManager) GetDiscoverer(conn dispatch.Conn) (*Discoverer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byConn[conn]
	return d, ok
}

// DeleteDiscoverer removes conn's discoverer record from every index.
func (m *DiscovererManager) DeleteDiscoverer(conn dispatch.Conn) (*Discoverer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.byConn[conn]
	if !ok {
		return nil, false
	}
	delete(m.byConn, conn)
	for method := range d.Methods {
		if set, ok := m.byMethod[method]; ok {
			delete(set, conn)
			if len(set) == 0 {
				delete(m.byMethod, method)
			}
		}
	}
	return d, true
}

// notify sends a REQ_SERVICE message with the given optype and host to
// every discoverer currently subscribed to method, each with a fresh id
// (notifications are not requests that expect a correlated response).
func (m *DiscovererManager) notify(method string, host message.Host, optype message.ServiceOptype) {
	m.mu.Lock()
	set := m.byMethod[method]
	targets := make([]dispatch.Conn, 0, len(set))
	for conn := range set {
		targets = append(targets, conn)
	}
	m.mu.Unlock()

	for _, conn := range targets {
		msg := &message.ReqServiceMessage{Method: method, Optype: optype, Host: &host}
		msg.SetID(uuid.NewString())
		if sender, ok := conn.(interface{ Send(message.Message) error }); ok {
			sender.Send(msg)
		}
	}
}

// NotifyOnline fans out ONLINE(method, host) to every discoverer of method.
func (m *DiscovererManager) NotifyOnline(method string, host message.Host) {
	m.notify(method, host, message.ServiceOnline)
}

// NotifyOffline fans out OFFLINE(method, host) to every discoverer of method.
func (m *DiscovererManager) NotifyOffline(method string, host message.Host) {
	m.notify(method, host, message.ServiceOffline)
}
