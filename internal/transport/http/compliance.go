package httpapi

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aurum/internal/compliance/commitment"
	"aurum/internal/compliance/models"
	"aurum/internal/compliance/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// ComplianceService is the registry surface the compliance handler needs.
type ComplianceService interface {
	AddAttestation(ctx context.Context, req service.AddAttestationRequest) (*models.Attestation, error)
	Revoke(ctx context.Context, caller, identity id.Identity) error
	Status(ctx context.Context, identity id.Identity) (models.Status, error)
	History(ctx context.Context, identity id.Identity) ([]*models.Attestation, error)
	AuthorizeAttestor(ctx context.Context, attestor id.Identity, enabled bool) error
	CommitmentRoot(ctx context.Context) (commitment.Root, error)
}

// ComplianceHandler exposes attestation ingress and the eligibility read model.
type ComplianceHandler struct {
	service ComplianceService
	logger  *slog.Logger
	admin   func(http.Handler) http.Handler
}

func NewComplianceHandler(service ComplianceService, logger *slog.Logger, admin func(http.Handler) http.Handler) *ComplianceHandler {
	return &ComplianceHandler{service: service, logger: logger, admin: admin}
}

// Register mounts the attestation routes.
func (h *ComplianceHandler) Register(r chi.Router) {
	r.Route("/attestations", func(r chi.Router) {
		r.Post("/", h.addAttestation)
		r.Get("/root", h.commitmentRoot)
		r.Get("/{identity}", h.status)
		r.Get("/{identity}/history", h.history)
		r.Post("/{identity}/revoke", h.revoke)
	})
	r.With(h.admin).Post("/admin/attestors", h.authorizeAttestor)
}

// addAttestation ingests one signed delivery from the attestation source.
// The signature is checked against the attestor's key inside the service;
// the transport only decodes.
func (h *ComplianceHandler) addAttestation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identity        string    `json:"identity"`
		AttestationHash string    `json:"attestation_hash"`
		Attestor        string    `json:"attestor"`
		Expiry          time.Time `json:"expiry"`
		Signature       string    `json:"signature"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	attestor, err := id.ParseIdentity(req.Attestor)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	signature, err := hex.DecodeString(req.Signature)
	if err != nil {
		WriteError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "signature must be hex encoded"))
		return
	}
	att, err := h.service.AddAttestation(r.Context(), service.AddAttestationRequest{
		Identity:        identity,
		AttestationHash: req.AttestationHash,
		Attestor:        attestor,
		Expiry:          req.Expiry,
		Signature:       signature,
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, att)
}

func (h *ComplianceHandler) revoke(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	var req struct {
		Attestor string `json:"attestor"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	attestor, err := id.ParseIdentity(req.Attestor)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.Revoke(r.Context(), attestor, identity); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ComplianceHandler) status(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	status, err := h.service.Status(r.Context(), identity)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *ComplianceHandler) history(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	history, err := h.service.History(r.Context(), identity)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"attestations": history})
}

func (h *ComplianceHandler) commitmentRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.service.CommitmentRoot(r.Context())
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"commitment_root": root.Hex()})
}

func (h *ComplianceHandler) authorizeAttestor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Attestor string `json:"attestor"`
		Enabled  bool   `json:"enabled"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	attestor, err := id.ParseIdentity(req.Attestor)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.AuthorizeAttestor(r.Context(), attestor, req.Enabled); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
