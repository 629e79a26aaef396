package cacvote

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// JurisdictionCode is an opaque string identifying an election authority.
type JurisdictionCode string

// Payload is the decoded inner record a SignedObject's Payload bytes carry.
// Every variant is a closed, JSON-tagged struct — a tagged union over a
// stable object_type string tag, matched with a type switch rather than
// subclass polymorphism, matching the original Rust payload enum's shape
// described in input.rs (Election, RegistrationRequest, Registration,
// PrintedBallot, ScannedBallot) plus a CastBallot variant the retrieved
// source only named in passing (db.rs's cast_ballot_object_type()).
type Payload interface {
	// ObjectType is the stable string tag stored in the objects and
	// journal_entries tables and used to route object-type lookups.
	ObjectType() string
	// ElectionID is the election this payload belongs to, or nil for
	// payloads that precede election assignment (a registration request)
	// or that the retrieved source never ties to one (a printed ballot).
	ElectionID() *uuid.UUID
	// JurisdictionCode is the jurisdiction authority this payload was
	// submitted under.
	JurisdictionCode() (JurisdictionCode, bool)
}

const (
	ObjectTypeElection             = "election"
	ObjectTypeCastBallot           = "castBallot"
	ObjectTypeRegistrationRequest  = "registrationRequest"
	ObjectTypeRegistration         = "registration"
	ObjectTypePrintedBallot        = "printedBallot"
	ObjectTypeScannedBallot        = "scannedBallot"
)

// ElectionPayload carries an election definition, grounded on input.rs's
// Election{jurisdiction_id, client_id, machine_id, definition}. The
// definition itself is opaque JSON: election definition editing is a
// Non-goal, so this package never parses past object_type/election_id.
type ElectionPayload struct {
	ElectionUUID uuid.UUID        `json:"electionId"`
	Jurisdiction JurisdictionCode `json:"jurisdictionCode"`
	ClientID     uuid.UUID        `json:"clientId"`
	MachineID    string           `json:"machineId"`
	Definition   json.RawMessage  `json:"definition"`
}

func (p ElectionPayload) ObjectType() string { return ObjectTypeElection }
func (p ElectionPayload) ElectionID() *uuid.UUID {
	id := p.ElectionUUID
	return &id
}
func (p ElectionPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// CastBallotPayload records a cast vote, tying a registration to the
// ballot it produced.
type CastBallotPayload struct {
	ElectionUUID             uuid.UUID        `json:"electionId"`
	Jurisdiction             JurisdictionCode `json:"jurisdictionCode"`
	ClientID                 uuid.UUID        `json:"clientId"`
	MachineID                string           `json:"machineId"`
	RegistrationID           uuid.UUID        `json:"registrationId"`
	CastVoteRecord           []byte           `json:"castVoteRecord"`
	CastVoteRecordSignature  []byte           `json:"castVoteRecordSignature"`
}

func (p CastBallotPayload) ObjectType() string { return ObjectTypeCastBallot }
func (p CastBallotPayload) ElectionID() *uuid.UUID {
	id := p.ElectionUUID
	return &id
}
func (p CastBallotPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// RegistrationRequestPayload is a voter's request to register, ported from
// input.rs's RegistrationRequest. It precedes election assignment, so it
// carries no election id.
type RegistrationRequestPayload struct {
	ClientID           uuid.UUID        `json:"clientId"`
	MachineID          string           `json:"machineId"`
	Jurisdiction       JurisdictionCode `json:"jurisdictionCode"`
	CommonAccessCardID string           `json:"commonAccessCardId"`
	GivenName          string           `json:"givenName"`
	FamilyName         string           `json:"familyName"`
}

func (p RegistrationRequestPayload) ObjectType() string { return ObjectTypeRegistrationRequest }
func (p RegistrationRequestPayload) ElectionID() *uuid.UUID { return nil }
func (p RegistrationRequestPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// RegistrationPayload is a jurisdiction's approval of a registration
// request against a specific election and ballot style, ported from
// input.rs's Registration.
type RegistrationPayload struct {
	ElectionUUID          uuid.UUID        `json:"electionId"`
	Jurisdiction          JurisdictionCode `json:"jurisdictionCode"`
	ClientID              uuid.UUID        `json:"clientId"`
	MachineID             string           `json:"machineId"`
	CommonAccessCardID    string           `json:"commonAccessCardId"`
	RegistrationRequestID uuid.UUID        `json:"registrationRequestId"`
	PrecinctID            string           `json:"precinctId"`
	BallotStyleID         string           `json:"ballotStyleId"`
}

func (p RegistrationPayload) ObjectType() string { return ObjectTypeRegistration }
func (p RegistrationPayload) ElectionID() *uuid.UUID {
	id := p.ElectionUUID
	return &id
}
func (p RegistrationPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// PrintedBallotPayload records that a registered voter's ballot was printed,
// ported from input.rs's PrintedBallot. The retrieved source never ties a
// printed ballot directly to an election id (it references a registration
// instead), so ElectionID reports none here too.
type PrintedBallotPayload struct {
	Jurisdiction                JurisdictionCode `json:"jurisdictionCode"`
	ClientID                    uuid.UUID        `json:"clientId"`
	MachineID                   string           `json:"machineId"`
	CommonAccessCardID          string           `json:"commonAccessCardId"`
	CommonAccessCardCertificate []byte           `json:"commonAccessCardCertificate"`
	RegistrationID              uuid.UUID        `json:"registrationId"`
	CastVoteRecord              []byte           `json:"castVoteRecord"`
	CastVoteRecordSignature     []byte           `json:"castVoteRecordSignature"`
}

func (p PrintedBallotPayload) ObjectType() string          { return ObjectTypePrintedBallot }
func (p PrintedBallotPayload) ElectionID() *uuid.UUID { return nil }
func (p PrintedBallotPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// ScannedBallotPayload records a mailed ballot's scan result, ported from
// input.rs's ScannedBallot.
type ScannedBallotPayload struct {
	ElectionUUID   uuid.UUID        `json:"electionId"`
	Jurisdiction   JurisdictionCode `json:"jurisdictionCode"`
	ClientID       uuid.UUID        `json:"clientId"`
	MachineID      string           `json:"machineId"`
	CastVoteRecord []byte           `json:"castVoteRecord"`
}

func (p ScannedBallotPayload) ObjectType() string { return ObjectTypeScannedBallot }
func (p ScannedBallotPayload) ElectionID() *uuid.UUID {
	id := p.ElectionUUID
	return &id
}
func (p ScannedBallotPayload) JurisdictionCode() (JurisdictionCode, bool) {
	return p.Jurisdiction, p.Jurisdiction != ""
}

// DecodePayload decodes raw bytes into the Payload variant named by
// objectType. Unknown tags are rejected rather than silently accepted —
// the registry of variants is closed by design.
func DecodePayload(objectType string, raw []byte) (Payload, error) {
	switch objectType {
	case ObjectTypeElection:
		var p ElectionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding election payload: %w", err)
		}
		return p, nil
	case ObjectTypeCastBallot:
		var p CastBallotPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding cast ballot payload: %w", err)
		}
		return p, nil
	case ObjectTypeRegistrationRequest:
		var p RegistrationRequestPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding registration request payload: %w", err)
		}
		return p, nil
	case ObjectTypeRegistration:
		var p RegistrationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding registration payload: %w", err)
		}
		return p, nil
	case ObjectTypePrintedBallot:
		var p PrintedBallotPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding printed ballot payload: %w", err)
		}
		return p, nil
	case ObjectTypeScannedBallot:
		var p ScannedBallotPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decoding scanned ballot payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown object type %q", objectType)
	}
}

// envelope is the minimal shape every payload variant shares, used only to
// read object_type out of a raw payload before dispatching to DecodePayload.
type envelope struct {
	ObjectType string `json:"objectType"`
}

// TryToInner decodes a SignedObject's Payload bytes into its Payload
// variant. The wire payload must itself carry an "objectType" field naming
// the variant — this mirrors object.try_to_inner() in the retrieved
// db.rs, which dispatches on the decoded payload's own object_type tag
// rather than a side channel.
func (o SignedObject) TryToInner() (Payload, error) {
	var e envelope
	if err := json.Unmarshal(o.Payload, &e); err != nil {
		return nil, fmt.Errorf("reading payload envelope: %w", err)
	}
	return DecodePayload(e.ObjectType, o.Payload)
}
