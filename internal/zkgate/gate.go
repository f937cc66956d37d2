package zkgate

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"aurum/internal/compliance/commitment"
)

var proofVerifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "aurum_proof_verify_duration_ms",
	Help:    "Latency of proof verification in milliseconds",
	Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
})

// CommitmentSource publishes the root proofs must be constructed against.
// Implemented by the compliance registry service.
type CommitmentSource interface {
	CommitmentRoot(ctx context.Context) (commitment.Root, error)
}

// Verifier checks one statement type's proof value against already-validated
// public inputs. The default verifier is the transparent checksum scheme the
// proving service emits today; a SNARK verifier slots in per statement
// without touching the gate.
type Verifier interface {
	Verify(proofValue []byte, inputs PublicInputs) bool
}

// Gate verifies proof envelopes. Stateless with respect to identity: its only
// state is the registered verifier set and the commitment source.
type Gate struct {
	source    CommitmentSource
	verifiers map[StatementType]Verifier
	batchSize int
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithVerifier overrides the verifier for one statement type.
func WithVerifier(statement StatementType, v Verifier) GateOption {
	return func(g *Gate) { g.verifiers[statement] = v }
}

// WithBatchParallelism bounds the VerifyBatch worker pool.
func WithBatchParallelism(n int) GateOption {
	return func(g *Gate) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

func New(source CommitmentSource, opts ...GateOption) *Gate {
	g := &Gate{
		source: source,
		verifiers: map[StatementType]Verifier{
			StatementEligibleDepositor:  checksumVerifier{statement: StatementEligibleDepositor},
			StatementEligibleWithdrawer: checksumVerifier{statement: StatementEligibleWithdrawer},
		},
		batchSize: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify checks a single proof envelope. Synchronous with respect to the
// ledger transition it gates; any failure is false.
func (g *Gate) Verify(ctx context.Context, proof Proof) bool {
	start := time.Now()
	defer func() {
		proofVerifyDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	verifier, ok := g.verifiers[proof.Statement]
	if !ok {
		return false
	}
	if len(proof.ProofValue) == 0 ||
		proof.PublicInputs.Nullifier == "" ||
		proof.PublicInputs.ActionBinding == "" {
		return false
	}
	claimedRoot, ok := proof.PublicInputs.root()
	if !ok {
		return false
	}

	publishedRoot, err := g.source.CommitmentRoot(ctx)
	if err != nil || publishedRoot.Zero() {
		return false
	}
	if claimedRoot != publishedRoot {
		return false
	}

	return verifier.Verify(proof.ProofValue, proof.PublicInputs)
}

// VerifyBatch verifies proofs on a bounded worker pool, preserving input
// order in the result. Used when the bridge replays a backlog of queued
// confirmations.
func (g *Gate) VerifyBatch(ctx context.Context, proofs []Proof) []bool {
	results := make([]bool, len(proofs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.batchSize)
	for i, proof := range proofs {
		eg.Go(func() error {
			results[i] = g.Verify(egCtx, proof)
			return nil
		})
	}
	// Workers never return errors; failures are false entries.
	_ = eg.Wait()
	return results
}

// checksumVerifier implements the proving service's current transparent
// scheme: the proof value is a domain-separated digest over the statement and
// public inputs. It proves possession of the construction, not zero-knowledge
// soundness; production deployments register a circuit-backed Verifier.
// Each instance is bound to one statement so a proof for one statement type
// never verifies under another.
type checksumVerifier struct {
	statement StatementType
}

const proofDomainTag = "aurum.zkproof.v1"

// ProofValue computes the expected proof value for the given statement and
// inputs. Exported for the proving-service client and tests.
func ProofValue(statement StatementType, inputs PublicInputs) []byte {
	h := sha256.New()
	h.Write([]byte(proofDomainTag))
	h.Write([]byte{0})
	h.Write([]byte(statement))
	h.Write([]byte{0})
	h.Write([]byte(inputs.CommitmentRoot))
	h.Write([]byte{0})
	h.Write([]byte(inputs.Nullifier))
	h.Write([]byte{0})
	h.Write([]byte(inputs.ActionBinding))
	return h.Sum(nil)
}

func (v checksumVerifier) Verify(proofValue []byte, inputs PublicInputs) bool {
	expected := ProofValue(v.statement, inputs)
	return subtle.ConstantTimeCompare(expected, proofValue) == 1
}
