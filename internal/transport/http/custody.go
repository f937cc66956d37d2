package httpapi

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	assetmodels "aurum/internal/assetregistry/models"
	"aurum/internal/custody/models"
	"aurum/internal/custody/service"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// CustodyService is the bridge surface the custody handler needs.
type CustodyService interface {
	ConfirmSettlement(ctx context.Context, req service.ConfirmSettlementRequest) (*models.CustodyReceipt, error)
	ForceUnlockByCustodian(ctx context.Context, assetID id.AssetID) (*assetmodels.Asset, error)
}

// CustodyHandler is the custodian callback surface. Receipt IDs are
// custodian-assigned; a re-delivered confirmation returns the stored receipt.
type CustodyHandler struct {
	service CustodyService
	logger  *slog.Logger
	admin   func(http.Handler) http.Handler
}

func NewCustodyHandler(service CustodyService, logger *slog.Logger, admin func(http.Handler) http.Handler) *CustodyHandler {
	return &CustodyHandler{service: service, logger: logger, admin: admin}
}

// Register mounts the settlement callback and the admin dispute route.
func (h *CustodyHandler) Register(r chi.Router) {
	r.Post("/custody/settlements", h.confirmSettlement)
	r.With(h.admin).Post("/admin/assets/{assetID}/force-unlock", h.forceUnlock)
}

func (h *CustodyHandler) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiptID    string `json:"receipt_id"`
		VaultID      string `json:"vault_id"`
		WithdrawalID string `json:"withdrawal_id"`
		AssetID      string `json:"asset_id"`
		CustodianID  string `json:"custodian_id"`
		FiatAmount   uint64 `json:"fiat_amount"`
		Signature    string `json:"signature"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	receiptID, err := id.ParseReceiptID(req.ReceiptID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	vaultID, err := id.ParseVaultID(req.VaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	custodianID, err := id.ParseIdentity(req.CustodianID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	signature, err := hex.DecodeString(req.Signature)
	if err != nil {
		WriteError(w, r, h.logger, dErrors.New(dErrors.CodeInvalidInput, "signature must be hex encoded"))
		return
	}

	confirm := service.ConfirmSettlementRequest{
		ReceiptID:   receiptID,
		VaultID:     vaultID,
		CustodianID: custodianID,
		FiatAmount:  req.FiatAmount,
		Signature:   signature,
	}
	// Exactly one of withdrawal_id / asset_id; the service rejects ambiguity.
	if req.WithdrawalID != "" {
		confirm.WithdrawalID, err = id.ParseWithdrawalID(req.WithdrawalID)
		if err != nil {
			WriteError(w, r, h.logger, err)
			return
		}
	}
	if req.AssetID != "" {
		confirm.AssetID, err = id.ParseAssetID(req.AssetID)
		if err != nil {
			WriteError(w, r, h.logger, err)
			return
		}
	}

	receipt, err := h.service.ConfirmSettlement(r.Context(), confirm)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, receipt)
}

func (h *CustodyHandler) forceUnlock(w http.ResponseWriter, r *http.Request) {
	assetID, err := id.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	asset, err := h.service.ForceUnlockByCustodian(r.Context(), assetID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, asset)
}
