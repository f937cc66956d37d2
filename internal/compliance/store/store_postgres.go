package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aurum/internal/compliance/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// PostgresStore persists attestation history and the attestor allow-list.
//
// Schema:
//
//	CREATE TABLE attestations (
//	    seq              BIGSERIAL PRIMARY KEY,
//	    identity         TEXT NOT NULL,
//	    attestation_hash TEXT NOT NULL,
//	    issuer           TEXT NOT NULL,
//	    issued_at        TIMESTAMPTZ NOT NULL,
//	    expiry           TIMESTAMPTZ NOT NULL,
//	    revoked          BOOLEAN NOT NULL DEFAULT FALSE
//	);
//	CREATE INDEX attestations_identity_idx ON attestations (identity, seq DESC);
//
//	CREATE TABLE attestors (
//	    identity TEXT PRIMARY KEY
//	);
//
// Rows are append-only except for the revoked flag, preserving supersession
// history.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Supersede(ctx context.Context, att *models.Attestation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attestations (identity, attestation_hash, issuer, issued_at, expiry, revoked)
		VALUES ($1, $2, $3, $4, $5, FALSE)`,
		string(att.Identity), att.AttestationHash, string(att.Issuer), att.IssuedAt, att.Expiry,
	)
	if err != nil {
		return fmt.Errorf("insert attestation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context, identity id.Identity) (*models.Attestation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT identity, attestation_hash, issuer, issued_at, expiry, revoked
		FROM attestations WHERE identity = $1
		ORDER BY seq DESC LIMIT 1`,
		string(identity),
	)
	return scanAttestation(row)
}

func (s *PostgresStore) Revoke(ctx context.Context, identity id.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE attestations SET revoked = TRUE
		WHERE seq = (SELECT seq FROM attestations WHERE identity = $1 ORDER BY seq DESC LIMIT 1)`,
		string(identity),
	)
	if err != nil {
		return fmt.Errorf("revoke attestation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke attestation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, identity id.Identity) ([]*models.Attestation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity, attestation_hash, issuer, issued_at, expiry, revoked
		FROM attestations WHERE identity = $1 ORDER BY seq ASC`,
		string(identity),
	)
	if err != nil {
		return nil, fmt.Errorf("list attestation history: %w", err)
	}
	defer rows.Close()
	return collectAttestations(rows)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Attestation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT ON (identity)
		       identity, attestation_hash, issuer, issued_at, expiry, revoked
		FROM attestations ORDER BY identity, seq DESC`,
		// DISTINCT ON picks the latest row per identity; revoked ones are
		// filtered below so the query stays index-friendly.
	)
	if err != nil {
		return nil, fmt.Errorf("list active attestations: %w", err)
	}
	defer rows.Close()

	all, err := collectAttestations(rows)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, att := range all {
		if !att.Revoked {
			active = append(active, att)
		}
	}
	return active, nil
}

func (s *PostgresStore) SetAttestor(ctx context.Context, attestor id.Identity, enabled bool) error {
	if enabled {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO attestors (identity) VALUES ($1) ON CONFLICT DO NOTHING`,
			string(attestor),
		)
		if err != nil {
			return fmt.Errorf("enable attestor: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM attestors WHERE identity = $1`, string(attestor))
	if err != nil {
		return fmt.Errorf("disable attestor: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAttestor(ctx context.Context, attestor id.Identity) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM attestors WHERE identity = $1)`,
		string(attestor),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attestor: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttestation(row rowScanner) (*models.Attestation, error) {
	var att models.Attestation
	var identity, issuer string
	err := row.Scan(&identity, &att.AttestationHash, &issuer, &att.IssuedAt, &att.Expiry, &att.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan attestation: %w", err)
	}
	att.Identity = id.Identity(identity)
	att.Issuer = id.Identity(issuer)
	return &att, nil
}

func collectAttestations(rows *sql.Rows) ([]*models.Attestation, error) {
	var out []*models.Attestation
	for rows.Next() {
		att, err := scanAttestation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attestations: %w", err)
	}
	return out, nil
}
