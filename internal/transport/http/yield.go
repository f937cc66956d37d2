package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aurum/internal/yield/models"
	"aurum/internal/yield/service"
	id "aurum/pkg/domain"
)

// YieldService is the distributor surface the yield handler needs.
type YieldService interface {
	TakeSnapshot(ctx context.Context, vaultID id.VaultID) (*models.ShareSnapshot, error)
	Distribute(ctx context.Context, req service.DistributeRequest) (*models.YieldEpoch, error)
	ListEpochs(ctx context.Context, vaultID id.VaultID) ([]*models.YieldEpoch, error)
	Credits(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.Credit, error)
}

// YieldHandler is the oracle callback plus the distribution read model.
type YieldHandler struct {
	service YieldService
	logger  *slog.Logger
}

func NewYieldHandler(service YieldService, logger *slog.Logger) *YieldHandler {
	return &YieldHandler{service: service, logger: logger}
}

// Register mounts the yield routes on the shared /vaults subtree.
func (h *YieldHandler) Register(r chi.Router) {
	r.Post("/vaults/{vaultID}/snapshots", h.takeSnapshot)
	r.Post("/vaults/{vaultID}/yield", h.distribute)
	r.Get("/vaults/{vaultID}/epochs", h.listEpochs)
	r.Get("/vaults/{vaultID}/holders/{holder}/credits", h.credits)
}

func (h *YieldHandler) takeSnapshot(w http.ResponseWriter, r *http.Request) {
	vaultID, err := id.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	snapshot, err := h.service.TakeSnapshot(r.Context(), vaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, snapshot)
}

// distribute ingests one oracle yield report. Re-delivery of an epoch is a
// conflict, never a second credit run.
func (h *YieldHandler) distribute(w http.ResponseWriter, r *http.Request) {
	vaultID, err := id.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	var req struct {
		EpochID    uint64 `json:"epoch_id"`
		TotalYield uint64 `json:"total_yield"`
		SnapshotID string `json:"snapshot_id"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	snapshotID, err := id.ParseSnapshotID(req.SnapshotID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	epoch, err := h.service.Distribute(r.Context(), service.DistributeRequest{
		VaultID:    vaultID,
		EpochID:    id.EpochID(req.EpochID),
		TotalYield: req.TotalYield,
		SnapshotID: snapshotID,
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, epoch)
}

func (h *YieldHandler) listEpochs(w http.ResponseWriter, r *http.Request) {
	vaultID, err := id.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	epochs, err := h.service.ListEpochs(r.Context(), vaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"epochs": epochs})
}

func (h *YieldHandler) credits(w http.ResponseWriter, r *http.Request) {
	vaultID, err := id.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	holder, err := id.ParseIdentity(chi.URLParam(r, "holder"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	credits, err := h.service.Credits(r.Context(), vaultID, holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"credits": credits})
}
