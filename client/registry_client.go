package client

import (
	"fmt"

	"zrpc/conn"
	"zrpc/dispatch"
	"zrpc/message"
	"zrpc/requestor"
)

// RegistryClient holds one connection to the registry and exposes
// RegisterService.
type RegistryClient struct {
	conn      *conn.Connection
	requestor *requestor.Requestor
}

// NewRegistryClient dials addr and prepares a connection dedicated to
// service registration.
func NewRegistryClient(addr string) (*RegistryClient, error) {
	r := requestor.New()
	d := dispatch.New()
	dispatch.Register(d, message.RspService, r.OnServiceResponse)

	c, err := dial(addr, d)
	if err != nil {
		return nil, err
	}
	rc := &RegistryClient{conn: c, requestor: r}
	c.OnClose(func(*conn.Connection) { r.CloseConnection(c) })
	return rc, nil
}

// RegisterService registers host as a provider of method and blocks for the
// registry's acknowledgement.
func (rc *RegistryClient) RegisterService(method string, host message.Host) error {
	req := &message.ReqServiceMessage{Method: method, Optype: message.ServiceRegistry, Host: &host}
	rsp, err := rc.requestor.SendBlocking(rc.conn, req)
	if err != nil {
		return err
	}
	svcRsp, ok := rsp.(*message.RspServiceMessage)
	if !ok {
		return fmt.Errorf("client: unexpected response type %T", rsp)
	}
	if svcRsp.RCode != message.OK {
		return fmt.Errorf("client: registration failed: %s", svcRsp.RCode)
	}
	return nil
}

// Close tears down the registry connection.
func (rc *RegistryClient) Close() error {
	return rc.conn.Close()
}
