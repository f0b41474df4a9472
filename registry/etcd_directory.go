// etcd-backed Directory implementation. etcd is used as a distributed
// phonebook:
//
//	Key:   /zrpc/{ServiceName}/{Addr}
//	Value: JSON-encoded Instance
//
// Registration uses TTL leases: if the server crashes, KeepAlive stops, the
// lease expires, and the entry is automatically removed — preventing "ghost"
// instances, the same property the in-memory provider/discoverer state gets
// from a dropped connection.
package registry

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdDirectory implements Directory using etcd v3.
type EtcdDirectory struct {
	client *clientv3.Client
}

// NewEtcdDirectory creates a Directory backed by the given etcd endpoints.
func NewEtcdDirectory(endpoints []string) (*EtcdDirectory, error) {
	c, err := clientv3.New(clientv3.Config{Endpoints: endpoints})
	if err != nil {
		return nil, err
	}
	return &EtcdDirectory{client: c}, nil
}

func key(serviceName, addr string) string {
	return "/zrpc/" + serviceName + "/" + addr
}

func prefix(serviceName string) string {
	return "/zrpc/" + serviceName + "/"
}

// Register stores instance under a TTL lease and starts background
// KeepAlive renewal. leaseID is intentionally kept local rather than stored
// on the struct — sharing one EtcdDirectory across many Register calls for
// different instances must not race on a shared lease field.
func (d *EtcdDirectory) Register(serviceName string, instance Instance, ttlSeconds int64) error {
	ctx := context.TODO()

	lease, err := d.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	if _, err := d.client.Put(ctx, key(serviceName, instance.Addr), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := d.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes instance's key from etcd directly, ahead of lease
// expiry — used during graceful shutdown.
func (d *EtcdDirectory) Deregister(serviceName, addr string) error {
	_, err := d.client.Delete(context.TODO(), key(serviceName, addr))
	return err
}

// Discover lists every instance currently registered under serviceName.
func (d *EtcdDirectory) Discover(serviceName string) ([]Instance, error) {
	resp, err := d.client.Get(context.TODO(), prefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var inst Instance
		if err := json.Unmarshal(kv.Value, &inst); err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// Watch emits the full updated instance list for serviceName whenever
// etcd reports any change under its prefix.
func (d *EtcdDirectory) Watch(serviceName string) <-chan []Instance {
	ch := make(chan []Instance, 1)

	go func() {
		watchChan := d.client.Watch(context.TODO(), prefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			instances, err := d.Discover(serviceName)
			if err != nil {
				continue
			}
			ch <- instances
		}
	}()

	return ch
}
