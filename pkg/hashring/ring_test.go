package hashring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingHasOnePositionPerNode(t *testing.T) {
	nodes := []Node{
		{IP: "127.0.0.1", Port: 9001},
		{IP: "127.0.0.1", Port: 9002},
		{IP: "127.0.0.1", Port: 9003},
	}
	r := New(nodes)
	assert.Equal(t, 3, r.Len())
}

func TestGetIsDeterministic(t *testing.T) {
	nodes := []Node{
		{IP: "127.0.0.1", Port: 9001},
		{IP: "127.0.0.1", Port: 9002},
		{IP: "127.0.0.1", Port: 9003},
	}
	r := New(nodes)

	first, ok := r.Get("some-key")
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		again, ok := r.Get("some-key")
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestGetDistributesAcrossNodes(t *testing.T) {
	nodes := []Node{
		{IP: "127.0.0.1", Port: 9001},
		{IP: "127.0.0.1", Port: 9002},
		{IP: "127.0.0.1", Port: 9003},
	}
	r := New(nodes)

	seen := map[Node]bool{}
	for i := 0; i < 200; i++ {
		n, ok := r.Get(keyFor(i))
		require.True(t, ok)
		seen[n] = true
	}
	assert.True(t, len(seen) > 1, "expected keys to spread across more than one node")
}

func TestGetOnEmptyRing(t *testing.T) {
	r := New(nil)
	_, ok := r.Get("anything")
	assert.False(t, ok)
}

func keyFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "key" + string(letters[i%26]) + string(letters[(i/26)%26]) + string(letters[(i/676)%26])
}
