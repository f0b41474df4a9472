package registry

import (
	"zrpc/dispatch"
	"zrpc/message"
)

// PDManager glues ProviderManager and DiscovererManager together and is the
// dispatcher handler registered for REQ_SERVICE.
type PDManager struct {
	Providers   *ProviderManager
	Discoverers *DiscovererManager
}

// NewPDManager creates a PDManager with fresh provider/discoverer indexes.
func NewPDManager() *PDManager {
	return &PDManager{
		Providers:   NewProviderManager(),
		Discoverers: NewDiscovererManager(),
	}
}

// OnRequest handles a REQ_SERVICE message by optype.
func (p *PDManager) OnRequest(conn dispatch.Conn, req *message.ReqServiceMessage) {
	switch req.Optype {
	case message.ServiceRegistry:
		if req.Host == nil {
			p.respond(conn, req, message.InvalidMsg, message.ServiceRegistry, "", nil)
			return
		}
		p.Providers.CreateProvider(conn, *req.Host, req.Method)
		p.Discoverers.NotifyOnline(req.Method, *req.Host)
		p.respond(conn, req, message.OK, message.ServiceRegistry, "", nil)

	case message.ServiceDiscovery:
		p.Discoverers.CreateDiscoverer(conn, req.Method)
		hosts := p.Providers.HostsForMethod(req.Method)
		rcode := message.OK
		if len(hosts) == 0 {
			rcode = message.NotFoundService
		}
		p.respond(conn, req, rcode, message.ServiceDiscovery, req.Method, hosts)

	default:
		p.respond(conn, req, message.InvalidOptype, message.ServiceUnknown, "", nil)
	}
}

func (p *PDManager) respond(conn dispatch.Conn, req *message.ReqServiceMessage, rcode message.RCode, optype message.ServiceOptype, method string, hosts []message.Host) {
	sender, ok := conn.(interface{ Send(message.Message) error })
	if !ok {
		return
	}
	rsp := &message.RspServiceMessage{RCode: rcode, Optype: optype, Method: method, Hosts: hosts}
	rsp.SetID(req.ID())
	sender.Send(rsp)
}

// OnConnectionClosed handles a closed connection: if conn is a
// provider, OFFLINE is emitted for each method it offered before the
// provider record is deleted; otherwise conn is treated as a discoverer and
// its record is deleted. A connection is never simultaneously both.
func (p *PDManager) OnConnectionClosed(conn dispatch.Conn) {
	if provider, ok := p.Providers.GetProvider(conn); ok {
		for _, method := range provider.Methods {
			p.Discoverers.NotifyOffline(method, provider.Host)
		}
		p.Providers.DeleteProvider(conn)
		return
	}
	p.Discoverers.DeleteDiscoverer(conn)
}
