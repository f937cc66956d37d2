package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"aurum/internal/compliance/commitment"
	compliancemetrics "aurum/internal/compliance/metrics"
	"aurum/internal/compliance/models"
	"aurum/internal/events"
	"aurum/internal/platform/config"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/requestcontext"
)

// Store is the persistence port for attestations and the attestor allow-list.
type Store interface {
	Supersede(ctx context.Context, att *models.Attestation) error
	Latest(ctx context.Context, identity id.Identity) (*models.Attestation, error)
	Revoke(ctx context.Context, identity id.Identity) error
	History(ctx context.Context, identity id.Identity) ([]*models.Attestation, error)
	ListActive(ctx context.Context) ([]*models.Attestation, error)
	SetAttestor(ctx context.Context, attestor id.Identity, enabled bool) error
	IsAttestor(ctx context.Context, attestor id.Identity) (bool, error)
}

// EligibilityCache fronts IsCompliant with a TTL-bounded positive cache.
type EligibilityCache interface {
	MarkEligible(ctx context.Context, identity id.Identity, ttl time.Duration) error
	IsEligible(ctx context.Context, identity id.Identity) (eligible, cached bool, err error)
	Invalidate(ctx context.Context, identity id.Identity) error
}

// AddAttestationRequest carries one delivery from the attestation source.
// Signature covers (identity, hash, expiry) and must verify against the
// attestor's key; the attestor must be on the allow-list.
type AddAttestationRequest struct {
	Identity        id.Identity
	AttestationHash string
	Attestor        id.Identity
	Expiry          time.Time
	Signature       []byte
}

// Service is the compliance registry: it owns attestation state, answers
// eligibility checks, and publishes the commitment root the ZK gate verifies
// against.
type Service struct {
	store   Store
	cache   EligibilityCache
	metrics *compliancemetrics.Metrics
	events  *events.Publisher
	logger  *slog.Logger

	rootMu    sync.RWMutex
	root      commitment.Root
	rootDirty bool
}

// Option configures a Service.
type Option func(*Service)

func WithCache(cache EligibilityCache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithMetrics(m *compliancemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger, rootDirty: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddAttestation verifies and records an attestation, superseding any prior
// one for the identity. History is retained; the new attestation wins.
func (s *Service) AddAttestation(ctx context.Context, req AddAttestationRequest) (*models.Attestation, error) {
	authorized, err := s.store.IsAttestor(ctx, req.Attestor)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check attestor allow-list")
	}
	if !authorized {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "attestor is not on the allow-list")
	}

	msg := attestationMessage(req.Identity, req.AttestationHash, req.Expiry)
	if !verifyAttestorSignature(req.Attestor, msg, req.Signature) {
		return nil, dErrors.New(dErrors.CodeInvalidSignature, "attestation signature verification failed")
	}

	now := requestcontext.Now(ctx)
	att, err := models.NewAttestation(req.Identity, req.AttestationHash, req.Attestor, now, req.Expiry)
	if err != nil {
		return nil, err
	}

	if err := s.store.Supersede(ctx, att); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attestation")
	}
	s.invalidate(ctx, req.Identity)
	s.metrics.IncrementAdded()
	s.emit(ctx, events.Event{
		Type:      events.TypeAttestationAdded,
		Holder:    req.Identity,
		Issuer:    req.Attestor,
		RequestID: requestcontext.RequestID(ctx),
	})
	return att, nil
}

// Revoke marks the identity's current attestation revoked. Idempotent for an
// already-revoked attestation; unknown identities are UnknownReference.
func (s *Service) Revoke(ctx context.Context, caller, identity id.Identity) error {
	authorized, err := s.store.IsAttestor(ctx, caller)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check attestor allow-list")
	}
	if !authorized {
		return dErrors.New(dErrors.CodeUnauthorized, "caller may not revoke attestations")
	}

	if err := s.store.Revoke(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnknownReference, "no attestation for identity")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke attestation")
	}
	s.invalidate(ctx, identity)
	s.metrics.IncrementRevoked()
	s.emit(ctx, events.Event{
		Type:      events.TypeAttestationRevoked,
		Holder:    identity,
		Issuer:    caller,
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// IsCompliant reports eligibility: an attestation exists, is not revoked, and
// has not expired. Deterministic given requestcontext.Now(ctx).
func (s *Service) IsCompliant(ctx context.Context, identity id.Identity) (bool, error) {
	if s.cache != nil {
		eligible, cached, err := s.cache.IsEligible(ctx, identity)
		if err != nil {
			// Cache trouble degrades to a registry read, never to a wrong answer.
			s.logger.WarnContext(ctx, "eligibility cache unavailable", "error", err)
		} else if cached {
			s.metrics.ObserveCheck(eligible)
			return eligible, nil
		}
	}

	att, err := s.store.Latest(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.ObserveCheck(false)
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attestation")
	}

	now := requestcontext.Now(ctx)
	eligible := att.Eligible(now)
	if eligible && s.cache != nil {
		ttl := min(config.EligibilityCacheTTL, att.Expiry.Sub(now))
		if err := s.cache.MarkEligible(ctx, identity, ttl); err != nil {
			s.logger.WarnContext(ctx, "failed to cache eligibility verdict", "error", err)
		}
	}
	s.metrics.ObserveCheck(eligible)
	return eligible, nil
}

// AuthorizeAttestor mutates the attestor allow-list. Admin-only: the admin
// subject must have been established by the transport's auth middleware.
func (s *Service) AuthorizeAttestor(ctx context.Context, attestor id.Identity, enabled bool) error {
	if requestcontext.AdminSubject(ctx) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "attestor allow-list changes require admin role")
	}
	if err := s.store.SetAttestor(ctx, attestor, enabled); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update attestor allow-list")
	}
	return nil
}

// Status returns the read-model eligibility view for an identity.
func (s *Service) Status(ctx context.Context, identity id.Identity) (models.Status, error) {
	att, err := s.store.Latest(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Status{Identity: identity, Reason: "no attestation"}, nil
		}
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attestation")
	}

	now := requestcontext.Now(ctx)
	status := models.Status{Identity: identity, ExpiresAt: &att.Expiry}
	switch {
	case att.Revoked:
		status.Reason = "revoked"
	case !now.Before(att.Expiry):
		status.Reason = "expired"
	default:
		status.Eligible = true
	}
	return status, nil
}

// History returns all attestations ever recorded for the identity.
func (s *Service) History(ctx context.Context, identity id.Identity) ([]*models.Attestation, error) {
	history, err := s.store.History(ctx, identity)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attestation history")
	}
	return history, nil
}

// CommitmentRoot returns the current commitment over active attestations,
// recomputing lazily after mutations.
func (s *Service) CommitmentRoot(ctx context.Context) (commitment.Root, error) {
	s.rootMu.RLock()
	if !s.rootDirty {
		root := s.root
		s.rootMu.RUnlock()
		return root, nil
	}
	s.rootMu.RUnlock()

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return commitment.Root{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list active attestations")
	}
	leaves := make([][32]byte, 0, len(active))
	for _, att := range active {
		leaves = append(leaves, commitment.Leaf(att.Identity, att.AttestationHash, att.Expiry))
	}
	root := commitment.Compute(leaves)

	s.rootMu.Lock()
	s.root = root
	s.rootDirty = false
	s.rootMu.Unlock()
	return root, nil
}

func (s *Service) invalidate(ctx context.Context, identity id.Identity) {
	s.rootMu.Lock()
	s.rootDirty = true
	s.rootMu.Unlock()
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, identity); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate eligibility cache",
				"error", err,
			)
		}
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit registry event",
			"type", string(event.Type),
			"error", err,
		)
	}
}
