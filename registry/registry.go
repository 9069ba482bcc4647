// Package registry announces and discovers the addresses that serve a
// JSON-RPC service.
//
// Two implementations are provided: Etcd, backed by an etcd v3 cluster, and
// Memory, for tests and single-process setups.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ServiceInstance is one announced endpoint of a service.
type ServiceInstance struct {
	ID      string `json:"id"`      // unique per running server, survives address reuse
	Addr    string `json:"addr"`    // host:port clients dial
	Weight  int    `json:"weight"`  // Weight for load balancing
	Version string `json:"version"` // free-form
}

// NewInstance returns an instance for addr with a fresh random ID.
func NewInstance(addr string, weight int, version string) ServiceInstance {
	return ServiceInstance{
		ID:      uuid.NewString(),
		Addr:    addr,
		Weight:  weight,
		Version: version,
	}
}

// ErrNoInstances is returned by Discover callers that need at least one
// instance.
var ErrNoInstances = errors.New("registry: no instances available")

type Registry interface {
	// Register announces instance under serviceName. The announcement
	// expires ttlSeconds after the registering process stops renewing it.
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttlSeconds int64) error
	// Deregister withdraws the instance with the given ID.
	Deregister(ctx context.Context, serviceName string, id string) error
	// Discover lists the instances currently announced under serviceName.
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list whenever it changes. The channel
	// is closed when ctx ends.
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}

func validate(serviceName string, instance ServiceInstance) error {
	if serviceName == "" {
		return fmt.Errorf("registry: empty service name")
	}
	if instance.ID == "" || instance.Addr == "" {
		return fmt.Errorf("registry: instance needs an ID and an address")
	}
	return nil
}
