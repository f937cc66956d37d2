package domain

import "github.com/google/uuid"

// Text marshalling so typed IDs render as canonical UUID strings in JSON
// payloads and event streams instead of raw byte arrays.

func (v VaultID) MarshalText() ([]byte, error)      { return []byte(uuid.UUID(v).String()), nil }
func (a AssetID) MarshalText() ([]byte, error)      { return []byte(uuid.UUID(a).String()), nil }
func (w WithdrawalID) MarshalText() ([]byte, error) { return []byte(uuid.UUID(w).String()), nil }
func (r ReceiptID) MarshalText() ([]byte, error)    { return []byte(uuid.UUID(r).String()), nil }
func (s SnapshotID) MarshalText() ([]byte, error)   { return []byte(uuid.UUID(s).String()), nil }

func (v *VaultID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*v = VaultID(parsed)
	return nil
}

func (a *AssetID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*a = AssetID(parsed)
	return nil
}

func (w *WithdrawalID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*w = WithdrawalID(parsed)
	return nil
}

func (r *ReceiptID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*r = ReceiptID(parsed)
	return nil
}

func (s *SnapshotID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*s = SnapshotID(parsed)
	return nil
}
