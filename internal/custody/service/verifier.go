package service

import (
	"crypto/ed25519"
	"encoding/binary"

	id "aurum/pkg/domain"
)

//go:generate mockgen -destination=../mocks/verifier_mock.go -package=mocks aurum/internal/custody/service ReceiptVerifier

// ReceiptVerifier checks a custodian's signature over a settlement receipt.
// The custodian identity registered on the vault is its public key.
type ReceiptVerifier interface {
	VerifyReceipt(custodian id.Identity, message, signature []byte) bool
}

// ReceiptMessage is the canonical byte string the custodian signs: receipt
// ID, the settled reference, and the fiat amount, under a version tag so a
// signature cannot be replayed across protocols or references.
func ReceiptMessage(receiptID id.ReceiptID, reference string, fiatAmount uint64) []byte {
	msg := make([]byte, 0, 96)
	msg = append(msg, []byte("aurum.custody.receipt.v1")...)
	msg = append(msg, 0)
	msg = append(msg, []byte(receiptID.String())...)
	msg = append(msg, 0)
	msg = append(msg, []byte(reference)...)
	msg = append(msg, 0)
	msg = binary.BigEndian.AppendUint64(msg, fiatAmount)
	return msg
}

// Ed25519Verifier is the production ReceiptVerifier.
type Ed25519Verifier struct{}

func (Ed25519Verifier) VerifyReceipt(custodian id.Identity, message, signature []byte) bool {
	key := custodian.Bytes()
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), message, signature)
}
