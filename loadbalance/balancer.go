// Package loadbalance provides load balancing strategies for distributing
// RPC requests across multiple service instances.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import "zrpc/registry"

// Balancer is the interface for load balancing strategies.
// client.DiscoveryClient calls Pick() on every DiscoverService to choose
// among the providers currently known for a method; RpcClient's discovery
// mode picks its strategy via client.NewDiscoveryRpcClientWithBalancer.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
