// Package cacvote holds the signed-object data model shared by the
// replication store and its HTTP API: the outer SignedObject envelope, the
// append-only JournalEntry it produces, and verification of the
// certificate/signature chain that authenticates a submission. The inner
// payload variant set lives in payload.go; the source this package mirrors
// (types_rs::cacvote, referenced from db.rs but not itself part of the
// retrieved corpus) was never retrieved, so the envelope shape below is
// reconstructed from how db.rs uses it rather than ported line for line.
package cacvote

import (
	"time"

	"github.com/google/uuid"
)

// SignedObject is the outer envelope every replicated record is wrapped in:
// an opaque payload, the credential chain that signed it, and the
// signature itself. ElectionID is a denormalized copy of the value the
// payload decodes to, kept on the envelope for fast lookups — it is a
// cache, never a source of truth (see the payload's own ElectionID()).
type SignedObject struct {
	ID           uuid.UUID  `json:"id"`
	ElectionID   *uuid.UUID `json:"electionId,omitempty"`
	Payload      []byte     `json:"payload"`
	Certificates []byte     `json:"certificates"`
	Signature    []byte     `json:"signature"`
}

// JournalEntryAction enumerates the kinds of change a JournalEntry records.
// "create" is the only action objects support; the CHECK constraint on
// journal_entries.action in schema.sql admits no other value.
type JournalEntryAction string

const ActionCreate JournalEntryAction = "create"

// JournalEntry is the append-only record clients replay to resync: one row
// per successful object creation, ordered by CreatedAt.
type JournalEntry struct {
	ID           uuid.UUID          `json:"id"`
	ObjectID     uuid.UUID          `json:"objectId"`
	ElectionID   *uuid.UUID         `json:"electionId,omitempty"`
	Jurisdiction string             `json:"jurisdiction"`
	ObjectType   string             `json:"objectType"`
	Action       JournalEntryAction `json:"action"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Machine identifies a jurisdiction-operated device (a scanner, a
// registration kiosk) by its machine_identifier, which is unique.
type Machine struct {
	ID                uuid.UUID
	MachineIdentifier string
}

// ScannedMailingLabelCode is the row produced by ingesting a TLV-framed
// BallotVerificationPayload scanned off a mailed ballot's label.
type ScannedMailingLabelCode struct {
	ID                           uuid.UUID
	ElectionID                   uuid.UUID
	MachineID                    uuid.UUID
	CommonAccessCardID           string
	EncryptedBallotSignatureHash []byte
	OriginalPayload              []byte
}
