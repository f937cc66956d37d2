// Package commitment computes the published commitment root over active
// attestations. The ZK gate verifies proofs against this root, so identity
// data never leaves the registry: each leaf binds an identity, its
// attestation hash, and its expiry into a single digest.
package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"time"

	id "aurum/pkg/domain"
)

// domainTag separates attestation leaves from any other sha256 use.
const domainTag = "aurum.attestation.leaf.v1"

// Root is a 32-byte commitment over the active attestation set.
type Root [32]byte

// Zero reports whether the root is the empty commitment.
func (r Root) Zero() bool { return r == Root{} }

// Hex renders the root the way provers consume it.
func (r Root) Hex() string { return hex.EncodeToString(r[:]) }

// Leaf hashes one attestation into its commitment leaf.
func Leaf(identity id.Identity, attestationHash string, expiry time.Time) [32]byte {
	h := sha256.New()
	h.Write([]byte(domainTag))
	h.Write([]byte{0})
	h.Write([]byte(identity))
	h.Write([]byte{0})
	h.Write([]byte(attestationHash))
	h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(expiry.Unix()))
	h.Write(ts[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Compute builds a deterministic merkle root over the leaves. Leaves are
// sorted so the root is independent of iteration order; odd levels carry the
// last node up unchanged. An empty set commits to the zero root.
func Compute(leaves [][32]byte) Root {
	if len(leaves) == 0 {
		return Root{}
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	sort.Slice(level, func(i, j int) bool {
		for k := range level[i] {
			if level[i][k] != level[j][k] {
				return level[i][k] < level[j][k]
			}
		}
		return false
	})

	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i+1 < len(level); i += 2 {
			pair := sha256.Sum256(append(level[i][:], level[i+1][:]...))
			next = append(next, pair)
		}
		if len(level)%2 == 1 {
			next = append(next, level[len(level)-1])
		}
		level = next
	}
	return Root(level[0])
}
