package store

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cacvote/server/internal/cacvote"
	"github.com/cacvote/server/internal/tlv"
)

// CreateObject atomically verifies, decodes, and persists a SignedObject
// alongside its create JournalEntry, in a single transaction. Mirrors
// db.rs's create_object: verify, read jurisdiction_code, insert object,
// insert journal entry, commit — rollback on any failure.
func (s *Store) CreateObject(ctx context.Context, obj cacvote.SignedObject, trustRoots *x509.CertPool) (cacvote.JournalEntry, error) {
	ok, err := cacvote.Verify(obj, trustRoots)
	if err != nil {
		return cacvote.JournalEntry{}, &VerificationFailedError{Reason: err.Error()}
	}
	if !ok {
		return cacvote.JournalEntry{}, &VerificationFailedError{Reason: "signature or certificate chain did not validate"}
	}

	inner, err := obj.TryToInner()
	if err != nil {
		return cacvote.JournalEntry{}, &VerificationFailedError{Reason: fmt.Sprintf("decoding payload: %v", err)}
	}

	jurisdiction, ok := inner.JurisdictionCode()
	if !ok {
		return cacvote.JournalEntry{}, &MissingJurisdictionError{}
	}
	objectType := inner.ObjectType()

	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	tx, err := s.begin.Begin(ctx)
	if err != nil {
		return cacvote.JournalEntry{}, classifyErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO objects (id, election_id, jurisdiction, object_type, payload, certificates, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, obj.ID, obj.ElectionID, string(jurisdiction), objectType, obj.Payload, obj.Certificates, obj.Signature)
	if err != nil {
		return cacvote.JournalEntry{}, classifyErr(err)
	}

	entryID := uuid.New()
	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (id, object_id, election_id, jurisdiction, object_type, action)
		VALUES ($1, $2, $3, $4, $5, 'create')
		RETURNING created_at
	`, entryID, obj.ID, obj.ElectionID, string(jurisdiction), objectType).Scan(&createdAt)
	if err != nil {
		return cacvote.JournalEntry{}, classifyErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return cacvote.JournalEntry{}, classifyErr(err)
	}

	return cacvote.JournalEntry{
		ID:           entryID,
		ObjectID:     obj.ID,
		ElectionID:   obj.ElectionID,
		Jurisdiction: string(jurisdiction),
		ObjectType:   objectType,
		Action:       cacvote.ActionCreate,
		CreatedAt:    createdAt,
	}, nil
}

// GetJournalEntries returns all entries strictly newer than sinceID's
// created_at (if provided), optionally filtered to one jurisdiction,
// ordered ascending. An unknown sinceID yields an empty result, not an
// error — mirroring db.rs's get_journal_entries exactly, branch for
// branch, over the four (sinceID, jurisdiction) presence combinations.
func (s *Store) GetJournalEntries(ctx context.Context, sinceID *uuid.UUID, jurisdiction *string) ([]cacvote.JournalEntry, error) {
	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	var rows pgx.Rows
	var err error
	switch {
	case sinceID != nil && jurisdiction != nil:
		rows, err = s.db.Query(ctx, `
			SELECT id, object_id, election_id, jurisdiction, object_type, action, created_at
			FROM journal_entries
			WHERE created_at > (SELECT created_at FROM journal_entries WHERE id = $1)
			  AND jurisdiction = $2
			ORDER BY created_at
		`, *sinceID, *jurisdiction)
	case sinceID != nil:
		rows, err = s.db.Query(ctx, `
			SELECT id, object_id, election_id, jurisdiction, object_type, action, created_at
			FROM journal_entries
			WHERE created_at > (SELECT created_at FROM journal_entries WHERE id = $1)
			ORDER BY created_at
		`, *sinceID)
	case jurisdiction != nil:
		rows, err = s.db.Query(ctx, `
			SELECT id, object_id, election_id, jurisdiction, object_type, action, created_at
			FROM journal_entries
			WHERE jurisdiction = $1
			ORDER BY created_at
		`, *jurisdiction)
	default:
		rows, err = s.db.Query(ctx, `
			SELECT id, object_id, election_id, jurisdiction, object_type, action, created_at
			FROM journal_entries
			ORDER BY created_at
		`)
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var entries []cacvote.JournalEntry
	for rows.Next() {
		var e cacvote.JournalEntry
		var action string
		if err := rows.Scan(&e.ID, &e.ObjectID, &e.ElectionID, &e.Jurisdiction, &e.ObjectType, &action, &e.CreatedAt); err != nil {
			return nil, classifyErr(err)
		}
		e.Action = cacvote.JournalEntryAction(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	if entries == nil {
		entries = []cacvote.JournalEntry{}
	}
	return entries, nil
}

// GetObjectByID returns the object if present, asserting the denormalized
// election_id column equals the election_id decoded from its payload; a
// mismatch is an IntegrityViolationError, never silently tolerated.
func (s *Store) GetObjectByID(ctx context.Context, id uuid.UUID) (*cacvote.SignedObject, error) {
	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	var obj cacvote.SignedObject
	err := s.db.QueryRow(ctx, `
		SELECT id, election_id, payload, certificates, signature
		FROM objects
		WHERE id = $1
	`, id).Scan(&obj.ID, &obj.ElectionID, &obj.Payload, &obj.Certificates, &obj.Signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(err)
	}

	inner, err := obj.TryToInner()
	if err != nil {
		return nil, &IntegrityViolationError{Detail: fmt.Sprintf("stored payload does not decode: %v", err)}
	}
	payloadElectionID := inner.ElectionID()
	if !uuidPtrsEqual(obj.ElectionID, payloadElectionID) {
		return nil, &IntegrityViolationError{
			Detail: fmt.Sprintf("denormalized election_id %v does not match payload election_id %v", obj.ElectionID, payloadElectionID),
		}
	}

	return &obj, nil
}

func uuidPtrsEqual(a, b *uuid.UUID) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// GetElectionIDs returns the ids of all objects tagged as elections.
func (s *Store) GetElectionIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.objectIDsWhere(ctx, "object_type = $1", cacvote.ObjectTypeElection)
}

// GetCastBallotIDsByElection returns the ids of cast-ballot objects for
// electionID.
func (s *Store) GetCastBallotIDsByElection(ctx context.Context, electionID uuid.UUID) ([]uuid.UUID, error) {
	return s.objectIDsWhere(ctx, "object_type = $1 AND election_id = $2", cacvote.ObjectTypeCastBallot, electionID)
}

func (s *Store) objectIDsWhere(ctx context.Context, predicate string, args ...any) ([]uuid.UUID, error) {
	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT id FROM objects WHERE %s", predicate), args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, classifyErr(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyErr(err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// GetObjectByElectionIDAndType returns at most one object matching
// (election_id, object_type).
func (s *Store) GetObjectByElectionIDAndType(ctx context.Context, electionID uuid.UUID, objectType string) (*cacvote.SignedObject, error) {
	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	var obj cacvote.SignedObject
	err := s.db.QueryRow(ctx, `
		SELECT id, election_id, payload, certificates, signature
		FROM objects
		WHERE election_id = $1 AND object_type = $2
	`, electionID, objectType).Scan(&obj.ID, &obj.ElectionID, &obj.Payload, &obj.Certificates, &obj.Signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return &obj, nil
}

// GetMachineIDByIdentifier looks up a Machine's id by its unique
// machine_identifier.
func (s *Store) GetMachineIDByIdentifier(ctx context.Context, identifier string) (*uuid.UUID, error) {
	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT id FROM machines WHERE machine_identifier = $1
	`, identifier).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return &id, nil
}

// CreateScannedMailingLabelCode parses a TLV-framed signed buffer scanned
// off a mailing label, resolves the machine it names, and inserts the
// resulting row — all in one transaction, mirroring db.rs's
// create_scanned_mailing_label_code. skipVerify corresponds to the
// SCANNED_LABEL_SKIP_VERIFY configuration flag (DESIGN.md records why this
// is a structural presence check rather than a full signature
// verification: the wire format here carries no certificate to verify
// against, unlike SignedObject).
func (s *Store) CreateScannedMailingLabelCode(ctx context.Context, rawTLV []byte, skipVerify bool) (uuid.UUID, error) {
	signedBuffer, err := tlv.DecodeSignedBuffer(rawTLV)
	if err != nil {
		return uuid.Nil, &VerificationFailedError{Reason: fmt.Sprintf("decoding signed buffer: %v", err)}
	}
	if !skipVerify && len(signedBuffer.Signature) == 0 {
		return uuid.Nil, &VerificationFailedError{Reason: "signed buffer carries no signature"}
	}

	payload, err := tlv.DecodeBallotVerificationPayload(signedBuffer.Buffer)
	if err != nil {
		return uuid.Nil, &VerificationFailedError{Reason: fmt.Sprintf("decoding ballot verification payload: %v", err)}
	}

	ctx, cancel := withAcquireTimeout(ctx)
	defer cancel()

	tx, err := s.begin.Begin(ctx)
	if err != nil {
		return uuid.Nil, classifyErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var machineID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM machines WHERE machine_identifier = $1`, payload.MachineID).Scan(&machineID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, &UnknownMachineError{Identifier: payload.MachineID}
	}
	if err != nil {
		return uuid.Nil, classifyErr(err)
	}

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO scanned_mailing_label_codes (
			id, election_id, machine_id, common_access_card_id, encrypted_ballot_signature_hash, original_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, payload.ElectionObjectID, machineID, payload.CommonAccessCardID, payload.EncryptedBallotSignatureHash, rawTLV)
	if err != nil {
		return uuid.Nil, classifyErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, classifyErr(err)
	}

	return id, nil
}
