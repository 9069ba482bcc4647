package loadbalance

import (
	"hash/crc32"
	"slices"
	"strconv"
	"strings"
	"sync"

	"lean-rpc/registry"
)

// ConsistentHashBalancer sends every call with the same key to the same
// instance while the instance set stays the same. Each instance owns
// replicas virtual nodes on a crc32 ring.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
//
// The ring is rebuilt whenever Pick sees a different instance set.
type ConsistentHashBalancer struct {
	replicas int // Virtual nodes per real instance

	mu    sync.Mutex
	sig   string                              // identity of the instance set the ring was built from
	ring  []uint32                            // Sorted hash values on the ring
	nodes map[uint32]registry.ServiceInstance // Hash value → instance mapping
}

const defaultReplicas = 100

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: defaultReplicas,
		nodes:    make(map[uint32]registry.ServiceInstance),
	}
}

func signature(instances []registry.ServiceInstance) string {
	ids := make([]string, len(instances))
	for i, inst := range instances {
		ids[i] = inst.ID + "@" + inst.Addr
	}
	slices.Sort(ids)
	return strings.Join(ids, ",")
}

// rebuild hashes "{addr}#{i}" for each virtual node. On a collision the
// first node placed keeps the slot.
func (b *ConsistentHashBalancer) rebuild(instances []registry.ServiceInstance) {
	b.ring = b.ring[:0]
	clear(b.nodes)
	for _, inst := range instances {
		for i := range b.replicas {
			hash := crc32.ChecksumIEEE([]byte(inst.Addr + "#" + strconv.Itoa(i)))
			if _, taken := b.nodes[hash]; taken {
				continue
			}
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst
		}
	}
	slices.Sort(b.ring)
}

// Pick walks clockwise from the key's hash to the first virtual node,
// wrapping past the top of the ring.
func (b *ConsistentHashBalancer) Pick(key string, instances []registry.ServiceInstance) (registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return registry.ServiceInstance{}, registry.ErrNoInstances
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sig := signature(instances); sig != b.sig {
		b.rebuild(instances)
		b.sig = sig
	}

	idx, _ := slices.BinarySearch(b.ring, crc32.ChecksumIEEE([]byte(key)))
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return ConsistentHash
}
