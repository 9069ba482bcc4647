// Package loadbalance provides load balancing strategies for distributing
// RPC requests across multiple service instances.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import (
	"fmt"
	"strings"

	"lean-rpc/registry"
)

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list. key identifies
	// the call; only key-aware strategies look at it.
	// Pick is called for every call and must be safe for concurrent use.
	Pick(key string, instances []registry.ServiceInstance) (registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// Strategy names accepted by New.
const (
	RoundRobin     = "round_robin"
	WeightedRandom = "weighted_random"
	ConsistentHash = "consistent_hash"
)

// New returns the balancer registered under name. Matching ignores case.
func New(name string) (Balancer, error) {
	switch strings.ToLower(name) {
	case RoundRobin, "":
		return &RoundRobinBalancer{}, nil
	case WeightedRandom:
		return &WeightedRandomBalancer{}, nil
	case ConsistentHash:
		return NewConsistentHashBalancer(), nil
	}
	return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
}
