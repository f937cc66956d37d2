package service

import (
	"crypto/ed25519"
	"encoding/binary"
	"time"

	id "aurum/pkg/domain"
)

// attestationMessage is the canonical byte string an attestor signs. Field
// separators and the version tag prevent cross-protocol replay; the expiry is
// bound so a signature cannot be reused with a longer window.
func attestationMessage(identity id.Identity, attestationHash string, expiry time.Time) []byte {
	msg := make([]byte, 0, 96)
	msg = append(msg, []byte("aurum.attestation.v1")...)
	msg = append(msg, 0)
	msg = append(msg, []byte(identity)...)
	msg = append(msg, 0)
	msg = append(msg, []byte(attestationHash)...)
	msg = append(msg, 0)
	msg = binary.BigEndian.AppendUint64(msg, uint64(expiry.Unix()))
	return msg
}

// verifyAttestorSignature checks the attestor's ed25519 signature. The
// attestor identity is its public key.
func verifyAttestorSignature(attestor id.Identity, message, signature []byte) bool {
	key := attestor.Bytes()
	if len(key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(key), message, signature)
}
