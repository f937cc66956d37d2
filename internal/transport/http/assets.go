package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"aurum/internal/assetregistry/models"
	"aurum/internal/assetregistry/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// AssetService is the registry surface the asset handler needs.
type AssetService interface {
	Mint(ctx context.Context, req service.MintRequest) (*models.Asset, error)
	LockForVault(ctx context.Context, caller id.Identity, assetID id.AssetID, vaultRef id.VaultID) (*models.Asset, error)
	Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
}

// AssetHandler exposes asset minting and the lock-intent flow. Lock
// confirmation is not here: it only happens through the custody settlement
// callback.
type AssetHandler struct {
	service AssetService
	logger  *slog.Logger
}

func NewAssetHandler(service AssetService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{service: service, logger: logger}
}

// Register mounts the asset routes.
func (h *AssetHandler) Register(r chi.Router) {
	r.Route("/assets", func(r chi.Router) {
		r.Post("/", h.mint)
		r.Get("/{assetID}", h.get)
		r.Post("/{assetID}/lock", h.lock)
	})
}

func (h *AssetHandler) mint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Issuer      string    `json:"issuer"`
		MetadataRef string    `json:"metadata_ref"`
		ProofHash   string    `json:"proof_hash"`
		Valuation   string    `json:"valuation"`
		Maturity    time.Time `json:"maturity"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	issuer, err := id.ParseIdentity(req.Issuer)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	valuation, err := decimal.NewFromString(req.Valuation)
	if err != nil {
		WriteError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "valuation is not a valid decimal"))
		return
	}
	asset, err := h.service.Mint(r.Context(), service.MintRequest{
		Issuer:      issuer,
		MetadataRef: req.MetadataRef,
		ProofHash:   req.ProofHash,
		Valuation:   valuation,
		Maturity:    req.Maturity,
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, asset)
}

func (h *AssetHandler) lock(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	var req struct {
		Issuer  string `json:"issuer"`
		VaultID string `json:"vault_id"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	issuer, err := id.ParseIdentity(req.Issuer)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	vaultID, err := id.ParseVaultID(req.VaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	asset, err := h.service.LockForVault(r.Context(), issuer, assetID, vaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, asset)
}

func (h *AssetHandler) get(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	asset, err := h.service.Get(r.Context(), assetID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, asset)
}
