package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	assetservice "aurum/internal/assetregistry/service"
	assetstore "aurum/internal/assetregistry/store"
	complianceservice "aurum/internal/compliance/service"
	compliancestore "aurum/internal/compliance/store"
	custodyservice "aurum/internal/custody/service"
	custodystore "aurum/internal/custody/store"
	vaultservice "aurum/internal/vault/service"
	vaultstore "aurum/internal/vault/store"
	yieldservice "aurum/internal/yield/service"
	yieldstore "aurum/internal/yield/store"
	"aurum/internal/zkgate"
	id "aurum/pkg/domain"
)

const adminKey = "router-test-admin-key"

// openGate accepts any proof so routing tests do not re-test the gate.
type openGate struct{}

func (openGate) Verify(_ context.Context, _ zkgate.Proof) bool { return true }

type RouterSuite struct {
	suite.Suite
	server *httptest.Server

	attestorPub  ed25519.PublicKey
	attestorPriv ed25519.PrivateKey
	attestor     id.Identity

	custodianPub  ed25519.PublicKey
	custodianPriv ed25519.PrivateKey
	custodian     id.Identity

	holderA id.Identity
	holderB id.Identity
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	var err error
	s.attestorPub, s.attestorPriv, err = ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.attestor = id.Identity(hex.EncodeToString(s.attestorPub))

	s.custodianPub, s.custodianPriv, err = ed25519.GenerateKey(rand.Reader)
	s.Require().NoError(err)
	s.custodian = id.Identity(hex.EncodeToString(s.custodianPub))

	s.holderA = id.Identity("aa11aa11aa11aa11aa11aa11aa11aa11")
	s.holderB = id.Identity("bb22bb22bb22bb22bb22bb22bb22bb22")

	logger := slog.Default()
	compliance := complianceservice.NewService(compliancestore.NewInMemory(), logger)
	assets := assetservice.NewService(assetstore.NewInMemory(), logger, nil)
	vaults := vaultservice.NewService(vaultstore.NewInMemory(), compliance, openGate{}, logger)
	yield := yieldservice.NewService(yieldstore.NewInMemory(), vaults, logger)
	bridge := custodyservice.NewService(custodystore.NewInMemory(), vaults, assets, yield, logger)

	admin := AdminAuth([]byte(adminKey), logger)
	router := NewRouter(logger, Handlers{
		Compliance: NewComplianceHandler(compliance, logger, admin),
		Assets:     NewAssetHandler(assets, logger),
		Vault:      NewVaultHandler(vaults, logger, admin),
		Custody:    NewCustodyHandler(bridge, logger, admin),
		Yield:      NewYieldHandler(yield, logger),
	})
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) adminToken(role string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "ops",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(adminKey))
	s.Require().NoError(err)
	return signed
}

// do issues a JSON request and decodes the response body into out (when
// non-nil). Returns the status code.
func (s *RouterSuite) do(method, path, token string, body, out any) int {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// signAttestation reproduces the attestation source's signing format.
func (s *RouterSuite) signAttestation(identity id.Identity, hash string, expiry time.Time) string {
	msg := []byte("aurum.attestation.v1")
	msg = append(msg, 0)
	msg = append(msg, []byte(identity)...)
	msg = append(msg, 0)
	msg = append(msg, []byte(hash)...)
	msg = append(msg, 0)
	msg = binary.BigEndian.AppendUint64(msg, uint64(expiry.Unix()))
	return hex.EncodeToString(ed25519.Sign(s.attestorPriv, msg))
}

func (s *RouterSuite) authorizeAttestor() {
	status := s.do(http.MethodPost, "/admin/attestors", s.adminToken("admin"), map[string]any{
		"attestor": string(s.attestor),
		"enabled":  true,
	}, nil)
	s.Require().Equal(http.StatusNoContent, status)
}

func (s *RouterSuite) attest(identity id.Identity) {
	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	status := s.do(http.MethodPost, "/attestations", "", map[string]any{
		"identity":         string(identity),
		"attestation_hash": "claim-set-hash",
		"attestor":         string(s.attestor),
		"expiry":           expiry.Format(time.RFC3339),
		"signature":        s.signAttestation(identity, "claim-set-hash", expiry),
	}, nil)
	s.Require().Equal(http.StatusCreated, status)
}

func (s *RouterSuite) createVault() string {
	var vault struct {
		VaultID string `json:"vault_id"`
	}
	status := s.do(http.MethodPost, "/vaults", s.adminToken("admin"), map[string]any{
		"strategy":     "short-duration-treasury",
		"risk_score":   20,
		"custodian_id": string(s.custodian),
	}, &vault)
	s.Require().Equal(http.StatusCreated, status)
	return vault.VaultID
}

func (s *RouterSuite) TestHealthz() {
	var body map[string]string
	status := s.do(http.MethodGet, "/healthz", "", nil, &body)
	s.Equal(http.StatusOK, status)
	s.Equal("ok", body["status"])
}

func (s *RouterSuite) TestAdminGate() {
	s.Run("missing token", func() {
		status := s.do(http.MethodPost, "/vaults", "", map[string]any{"strategy": "x"}, nil)
		s.Equal(http.StatusUnauthorized, status)
	})
	s.Run("token without admin role", func() {
		status := s.do(http.MethodPost, "/vaults", s.adminToken("viewer"), map[string]any{"strategy": "x"}, nil)
		s.Equal(http.StatusForbidden, status)
	})
}

func (s *RouterSuite) TestAttestationFlow() {
	s.authorizeAttestor()
	s.attest(s.holderA)

	var verdict struct {
		Eligible bool   `json:"eligible"`
		Reason   string `json:"reason"`
	}
	status := s.do(http.MethodGet, "/attestations/"+string(s.holderA), "", nil, &verdict)
	s.Equal(http.StatusOK, status)
	s.True(verdict.Eligible)

	status = s.do(http.MethodPost, "/attestations/"+string(s.holderA)+"/revoke", "", map[string]any{
		"attestor": string(s.attestor),
	}, nil)
	s.Equal(http.StatusNoContent, status)

	status = s.do(http.MethodGet, "/attestations/"+string(s.holderA), "", nil, &verdict)
	s.Equal(http.StatusOK, status)
	s.False(verdict.Eligible)
	s.Equal("revoked", verdict.Reason)
}

func (s *RouterSuite) TestDepositRequiresCompliance() {
	vaultID := s.createVault()
	var errBody struct {
		Error string `json:"error"`
	}
	status := s.do(http.MethodPost, "/vaults/"+vaultID+"/deposits", "", map[string]any{
		"holder": string(s.holderA),
		"assets": 100,
	}, &errBody)
	s.Equal(http.StatusForbidden, status)
	s.Equal("not_compliant", errBody.Error)
}

// Full lifecycle over the wire: deposits, proof-gated withdrawal, signed
// custody confirmation, snapshot, and an exactly-once yield epoch.
func (s *RouterSuite) TestVaultLifecycleEndToEnd() {
	s.authorizeAttestor()
	s.attest(s.holderA)
	s.attest(s.holderB)
	vaultID := s.createVault()

	var mintResp struct {
		SharesMinted uint64 `json:"shares_minted"`
	}
	status := s.do(http.MethodPost, "/vaults/"+vaultID+"/deposits", "", map[string]any{
		"holder": string(s.holderA), "assets": 1000,
	}, &mintResp)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(uint64(1000), mintResp.SharesMinted)

	status = s.do(http.MethodPost, "/vaults/"+vaultID+"/deposits", "", map[string]any{
		"holder": string(s.holderB), "assets": 500,
	}, &mintResp)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(uint64(500), mintResp.SharesMinted)

	var vault struct {
		TotalValueLocked uint64 `json:"total_value_locked"`
		TotalShares      uint64 `json:"total_shares"`
	}
	status = s.do(http.MethodGet, "/vaults/"+vaultID, "", nil, &vault)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(uint64(1500), vault.TotalValueLocked)

	var withdrawal struct {
		WithdrawalID string `json:"withdrawal_id"`
		AssetAmount  uint64 `json:"asset_amount"`
		Status       string `json:"status"`
	}
	status = s.do(http.MethodPost, "/vaults/"+vaultID+"/withdrawals", "", map[string]any{
		"holder": string(s.holderA), "shares": 1000,
	}, &withdrawal)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(uint64(1000), withdrawal.AssetAmount)
	s.Equal("requested", withdrawal.Status)

	status = s.do(http.MethodPost, "/vaults/"+vaultID+"/withdrawals/"+withdrawal.WithdrawalID+"/proof", "", map[string]any{
		"proof_value":     []byte("opaque"),
		"commitment_root": "root",
		"nullifier":       "n-1",
	}, &withdrawal)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("awaiting_custody", withdrawal.Status)

	receiptID := uuid.NewString()
	parsedReceipt, err := id.ParseReceiptID(receiptID)
	s.Require().NoError(err)
	message := custodyservice.ReceiptMessage(parsedReceipt, withdrawal.WithdrawalID, 1000)
	settlement := map[string]any{
		"receipt_id":    receiptID,
		"vault_id":      vaultID,
		"withdrawal_id": withdrawal.WithdrawalID,
		"custodian_id":  string(s.custodian),
		"fiat_amount":   1000,
		"signature":     hex.EncodeToString(ed25519.Sign(s.custodianPriv, message)),
	}
	status = s.do(http.MethodPost, "/custody/settlements", "", settlement, nil)
	s.Require().Equal(http.StatusOK, status)

	status = s.do(http.MethodGet, "/vaults/"+vaultID, "", nil, &vault)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(uint64(500), vault.TotalValueLocked)
	s.Equal(uint64(500), vault.TotalShares)

	s.Run("replayed settlement does not re-burn", func() {
		status := s.do(http.MethodPost, "/custody/settlements", "", settlement, nil)
		s.Require().Equal(http.StatusOK, status)
		status = s.do(http.MethodGet, "/vaults/"+vaultID, "", nil, &vault)
		s.Require().Equal(http.StatusOK, status)
		s.Equal(uint64(500), vault.TotalValueLocked)
	})

	var snapshot struct {
		SnapshotID  string `json:"snapshot_id"`
		TotalShares uint64 `json:"total_shares"`
	}
	status = s.do(http.MethodPost, "/vaults/"+vaultID+"/snapshots", "", nil, &snapshot)
	s.Require().Equal(http.StatusCreated, status)
	s.Equal(uint64(500), snapshot.TotalShares)

	report := map[string]any{
		"epoch_id":    1,
		"total_yield": 100,
		"snapshot_id": snapshot.SnapshotID,
	}
	status = s.do(http.MethodPost, "/vaults/"+vaultID+"/yield", "", report, nil)
	s.Require().Equal(http.StatusCreated, status)

	var credits struct {
		Credits []struct {
			Amount uint64 `json:"amount"`
		} `json:"credits"`
	}
	status = s.do(http.MethodGet, "/vaults/"+vaultID+"/holders/"+string(s.holderB)+"/credits", "", nil, &credits)
	s.Require().Equal(http.StatusOK, status)
	s.Require().Len(credits.Credits, 1)
	s.Equal(uint64(100), credits.Credits[0].Amount)

	s.Run("epoch replay is a conflict", func() {
		var errBody struct {
			Error string `json:"error"`
		}
		status := s.do(http.MethodPost, "/vaults/"+vaultID+"/yield", "", report, &errBody)
		s.Equal(http.StatusConflict, status)
		s.Equal("already_distributed", errBody.Error)
	})
}

func (s *RouterSuite) TestUnknownVault() {
	var errBody struct {
		Error string `json:"error"`
	}
	status := s.do(http.MethodGet, "/vaults/"+uuid.NewString(), "", nil, &errBody)
	s.Equal(http.StatusNotFound, status)
	s.Equal("unknown_reference", errBody.Error)
}

func (s *RouterSuite) TestMalformedInput() {
	vaultID := s.createVault()

	s.Run("bad json body", func() {
		req, err := http.NewRequest(http.MethodPost, s.server.URL+"/vaults/"+vaultID+"/deposits", bytes.NewBufferString("{"))
		s.Require().NoError(err)
		resp, err := s.server.Client().Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("bad vault id", func() {
		status := s.do(http.MethodGet, "/vaults/not-a-uuid", "", nil, nil)
		s.Equal(http.StatusBadRequest, status)
	})
}
