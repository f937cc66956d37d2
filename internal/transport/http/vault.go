package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aurum/internal/vault/models"
	"aurum/internal/vault/service"
	"aurum/internal/zkgate"
	id "aurum/pkg/domain"
)

// VaultService is the ledger surface the vault handler needs.
type VaultService interface {
	CreateVault(ctx context.Context, req service.CreateVaultRequest) (*models.Vault, error)
	Deposit(ctx context.Context, vaultID id.VaultID, holder id.Identity, assets uint64) (uint64, error)
	RequestWithdrawal(ctx context.Context, vaultID id.VaultID, holder id.Identity, shares uint64) (*models.PendingWithdrawal, error)
	AttachWithdrawalProof(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID, proof zkgate.Proof) (*models.PendingWithdrawal, error)
	CancelWithdrawal(ctx context.Context, vaultID id.VaultID, holder id.Identity, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error)
	Pause(ctx context.Context, vaultID id.VaultID) error
	Unpause(ctx context.Context, vaultID id.VaultID) error
	GetVault(ctx context.Context, vaultID id.VaultID) (*models.Vault, error)
	ShareBalance(ctx context.Context, vaultID id.VaultID, holder id.Identity) (*models.ShareAccount, error)
	Withdrawals(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.PendingWithdrawal, error)
	GetWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error)
}

// VaultHandler exposes vault lifecycle and share operations.
type VaultHandler struct {
	service VaultService
	logger  *slog.Logger
	admin   func(http.Handler) http.Handler
}

func NewVaultHandler(service VaultService, logger *slog.Logger, admin func(http.Handler) http.Handler) *VaultHandler {
	return &VaultHandler{service: service, logger: logger, admin: admin}
}

// Register mounts the vault routes. Registrations are flat because the yield
// handler shares the /vaults subtree.
func (h *VaultHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.admin)
		r.Post("/vaults", h.createVault)
		r.Post("/vaults/{vaultID}/pause", h.pause)
		r.Post("/vaults/{vaultID}/unpause", h.unpause)
	})

	r.Get("/vaults/{vaultID}", h.getVault)
	r.Post("/vaults/{vaultID}/deposits", h.deposit)
	r.Post("/vaults/{vaultID}/withdrawals", h.requestWithdrawal)
	r.Get("/vaults/{vaultID}/withdrawals/{withdrawalID}", h.getWithdrawal)
	r.Post("/vaults/{vaultID}/withdrawals/{withdrawalID}/proof", h.attachProof)
	r.Post("/vaults/{vaultID}/withdrawals/{withdrawalID}/cancel", h.cancelWithdrawal)
	r.Get("/vaults/{vaultID}/holders/{holder}/shares", h.shareBalance)
	r.Get("/vaults/{vaultID}/holders/{holder}/withdrawals", h.holderWithdrawals)
}

func (h *VaultHandler) createVault(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Strategy  string `json:"strategy"`
		RiskScore int    `json:"risk_score"`
		Custodian string `json:"custodian_id"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	custodian, err := id.ParseIdentity(req.Custodian)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	vault, err := h.service.CreateVault(r.Context(), service.CreateVaultRequest{
		Strategy:  req.Strategy,
		RiskScore: req.RiskScore,
		Custodian: custodian,
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, vault)
}

func (h *VaultHandler) deposit(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	var req struct {
		Holder string `json:"holder"`
		Assets uint64 `json:"assets"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	holder, err := id.ParseIdentity(req.Holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	shares, err := h.service.Deposit(r.Context(), vaultID, holder, req.Assets)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"vault_id":      vaultID,
		"holder":        holder,
		"shares_minted": shares,
	})
}

func (h *VaultHandler) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	var req struct {
		Holder string `json:"holder"`
		Shares uint64 `json:"shares"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	holder, err := id.ParseIdentity(req.Holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	withdrawal, err := h.service.RequestWithdrawal(r.Context(), vaultID, holder, req.Shares)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, withdrawal)
}

// attachProof accepts the holder's eligibility proof for a pending
// withdrawal. The proof must bind the withdrawal ID in its public inputs;
// only a verified proof moves the withdrawal into custody.
func (h *VaultHandler) attachProof(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := id.ParseWithdrawalID(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	var req struct {
		ProofValue     []byte `json:"proof_value"`
		CommitmentRoot string `json:"commitment_root"`
		Nullifier      string `json:"nullifier"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	withdrawal, err := h.service.AttachWithdrawalProof(r.Context(), vaultID, withdrawalID, zkgate.Proof{
		Statement:  zkgate.StatementEligibleWithdrawer,
		ProofValue: req.ProofValue,
		PublicInputs: zkgate.PublicInputs{
			CommitmentRoot: req.CommitmentRoot,
			Nullifier:      req.Nullifier,
			ActionBinding:  withdrawalID.String(),
		},
	})
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, withdrawal)
}

func (h *VaultHandler) cancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := id.ParseWithdrawalID(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	var req struct {
		Holder string `json:"holder"`
	}
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}
	holder, err := id.ParseIdentity(req.Holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	withdrawal, err := h.service.CancelWithdrawal(r.Context(), vaultID, holder, withdrawalID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, withdrawal)
}

func (h *VaultHandler) pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, h.service.Pause)
}

func (h *VaultHandler) unpause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, h.service.Unpause)
}

func (h *VaultHandler) setPaused(w http.ResponseWriter, r *http.Request, op func(context.Context, id.VaultID) error) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	if err := op(r.Context(), vaultID); err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	vault, err := h.service.GetVault(r.Context(), vaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, vault)
}

func (h *VaultHandler) getVault(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	vault, err := h.service.GetVault(r.Context(), vaultID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, vault)
}

func (h *VaultHandler) getWithdrawal(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	withdrawalID, err := id.ParseWithdrawalID(chi.URLParam(r, "withdrawalID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	withdrawal, err := h.service.GetWithdrawal(r.Context(), vaultID, withdrawalID)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, withdrawal)
}

func (h *VaultHandler) shareBalance(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	holder, err := id.ParseIdentity(chi.URLParam(r, "holder"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	account, err := h.service.ShareBalance(r.Context(), vaultID, holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

func (h *VaultHandler) holderWithdrawals(w http.ResponseWriter, r *http.Request) {
	vaultID, ok := h.vaultID(w, r)
	if !ok {
		return
	}
	holder, err := id.ParseIdentity(chi.URLParam(r, "holder"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	withdrawals, err := h.service.Withdrawals(r.Context(), vaultID, holder)
	if err != nil {
		WriteError(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"withdrawals": withdrawals})
}

func (h *VaultHandler) vaultID(w http.ResponseWriter, r *http.Request) (id.VaultID, bool) {
	vaultID, err := id.ParseVaultID(chi.URLParam(r, "vaultID"))
	if err != nil {
		WriteError(w, r, h.logger, err)
		return id.VaultID{}, false
	}
	return vaultID, true
}
