package commitment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "aurum/pkg/domain"
)

func TestComputeDeterministic(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := Leaf(id.Identity("aa"), "hash-a", expiry)
	b := Leaf(id.Identity("bb"), "hash-b", expiry)
	c := Leaf(id.Identity("cc"), "hash-c", expiry)

	// Root must not depend on leaf order.
	assert.Equal(t, Compute([][32]byte{a, b, c}), Compute([][32]byte{c, a, b}))
}

func TestComputeEmpty(t *testing.T) {
	assert.True(t, Compute(nil).Zero())
}

func TestLeafBindsAllFields(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	base := Leaf(id.Identity("aa"), "hash", expiry)

	assert.NotEqual(t, base, Leaf(id.Identity("ab"), "hash", expiry))
	assert.NotEqual(t, base, Leaf(id.Identity("aa"), "hash2", expiry))
	assert.NotEqual(t, base, Leaf(id.Identity("aa"), "hash", expiry.Add(time.Second)))
}

func TestComputeSingleAndOdd(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	a := Leaf(id.Identity("aa"), "hash-a", expiry)
	b := Leaf(id.Identity("bb"), "hash-b", expiry)
	c := Leaf(id.Identity("cc"), "hash-c", expiry)

	single := Compute([][32]byte{a})
	assert.Equal(t, Root(a), single)

	odd := Compute([][32]byte{a, b, c})
	even := Compute([][32]byte{a, b})
	assert.NotEqual(t, odd, even)
	assert.False(t, odd.Zero())
}
