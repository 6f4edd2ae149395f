// Package hashring implements the consistent hash ring spec.md §4.7
// describes: one point per worker, no virtual nodes. Grounded on
// original_source/lib/load_balancer.h's LoadBalancer::hashKey/getServer,
// which hashes "ip:port" once per backend into a sorted std::set<int> and
// picks the first ring value >= hash(key), wrapping to the smallest ring
// value otherwise. xxhash replaces std::hash<std::string> as the hash
// function; the ring semantics are otherwise unchanged.
package hashring

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/slices"
)

// Node is a single backend worker in the ring.
type Node struct {
	IP   string
	Port int
}

func (n Node) addr() string {
	return n.IP + ":" + strconv.Itoa(n.Port)
}

// hashKey mirrors LoadBalancer::hashKey: a 64-bit hash masked down into
// the non-negative 31-bit space a C++ int can hold, so ring positions
// stay comparable to the original's despite Go's wider native hash.
func hashKey(key string) uint32 {
	return uint32(xxhash.Sum64String(key) & 0x7FFFFFFF)
}

// Ring is a consistent hash ring over a fixed set of worker nodes.
type Ring struct {
	positions []uint32
	nodes     map[uint32]Node
}

// New builds a ring with one ring position per node, derived from
// hashKey("ip:port").
func New(nodes []Node) *Ring {
	r := &Ring{
		positions: make([]uint32, 0, len(nodes)),
		nodes:     make(map[uint32]Node, len(nodes)),
	}
	for _, n := range nodes {
		h := hashKey(n.addr())
		if _, exists := r.nodes[h]; exists {
			continue // two nodes hashing to the same point; first wins
		}
		r.positions = append(r.positions, h)
		r.nodes[h] = n
	}
	sort.Slice(r.positions, func(i, j int) bool { return r.positions[i] < r.positions[j] })
	return r
}

// Get returns the node owning key: the node at the first ring position
// >= hash(key), wrapping around to the smallest position if hash(key)
// exceeds every position on the ring.
func (r *Ring) Get(key string) (Node, bool) {
	if len(r.positions) == 0 {
		return Node{}, false
	}
	h := hashKey(key)
	i, _ := slices.BinarySearch(r.positions, h)
	if i == len(r.positions) {
		i = 0
	}
	return r.nodes[r.positions[i]], true
}

// Len reports the number of nodes on the ring.
func (r *Ring) Len() int {
	return len(r.positions)
}
