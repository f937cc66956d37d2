// Package zkgate verifies zero-knowledge proof assertions against the
// compliance registry's published commitment root. The gate never sees
// identity data: a proof asserts "an eligible attestation is committed under
// this root" and binds that assertion to one ledger action.
//
// Proof construction happens in an external proving service. The gate only
// validates structure, checks the public inputs against the published
// commitment, and runs the statement's verifier. It fails closed: every
// malformed envelope, unknown statement, or mismatched input is a plain
// false, never a partial success.
package zkgate

import (
	"encoding/hex"

	"aurum/internal/compliance/commitment"
)

// StatementType tags the assertion a proof makes. Payloads are a tagged
// variant keyed by this type; unknown types are rejected before any
// cryptographic work.
type StatementType string

const (
	// StatementEligibleDepositor asserts the prover holds an active, unexpired
	// attestation committed under the public root.
	StatementEligibleDepositor StatementType = "eligible-depositor"
	// StatementEligibleWithdrawer asserts the same for the withdrawal path,
	// additionally binding the withdrawal being authorized.
	StatementEligibleWithdrawer StatementType = "eligible-withdrawer"
)

// PublicInputs are the proof's public commitments. All three must be present;
// the root must equal the registry's currently published commitment.
type PublicInputs struct {
	// CommitmentRoot is the hex-encoded attestation commitment the proof was
	// constructed against.
	CommitmentRoot string `json:"commitment_root"`
	// Nullifier is a one-way tag derived inside the proof; it identifies the
	// proving attestation without revealing it.
	Nullifier string `json:"nullifier"`
	// ActionBinding ties the proof to a single ledger action (for withdrawal
	// proofs, the withdrawal ID) so a proof cannot be replayed elsewhere.
	ActionBinding string `json:"action_binding"`
}

// Proof is the opaque envelope delivered by the proving service.
type Proof struct {
	Statement    StatementType `json:"statement"`
	ProofValue   []byte        `json:"proof_value"`
	PublicInputs PublicInputs  `json:"public_inputs"`
}

// root decodes the hex commitment root; ok is false on any malformation.
func (p PublicInputs) root() (commitment.Root, bool) {
	decoded, err := hex.DecodeString(p.CommitmentRoot)
	if err != nil || len(decoded) != 32 {
		return commitment.Root{}, false
	}
	var out commitment.Root
	copy(out[:], decoded)
	return out, true
}
