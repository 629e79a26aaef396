// Package tlv decodes the tag-length-value framed records scanned off a
// mailed ballot's verification label: an outer SignedBuffer wrapping an
// inner BallotVerificationPayload. spec.md places TLV byte-level framing
// out of scope ("treated as an opaque parser producing typed records"),
// so this package goes only as far as producing those two typed records
// and intentionally does not attempt a general-purpose TLV codec — no
// BallotVerificationPayload or SignedBuffer source was part of the
// retrieved corpus, so the tag assignments below are this package's own
// invented scheme rather than a port of the original wire format.
package tlv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Field tags. One byte each; values are themselves prefixed by a 2-byte
// big-endian length, so a reader can skip unknown tags.
const (
	tagBuffer                       byte = 0x01
	tagSignature                    byte = 0x02
	tagMachineID                    byte = 0x10
	tagElectionObjectID             byte = 0x11
	tagCommonAccessCardID           byte = 0x12
	tagEncryptedBallotSignatureHash byte = 0x13
)

// SignedBuffer is the outer TLV record: an inner buffer and the signature
// over it. The mailing-label scan path checks only that this signature is
// non-empty, unless SCANNED_LABEL_SKIP_VERIFY is set, and does not verify
// it cryptographically (see internal/store's CreateScannedMailingLabelCode
// and the decision recorded in DESIGN.md).
type SignedBuffer struct {
	Buffer    []byte
	Signature []byte
}

// BallotVerificationPayload identifies the machine, election, and voter
// credential a scanned mailing label's code refers to.
type BallotVerificationPayload struct {
	MachineID                    string
	ElectionObjectID             uuid.UUID
	CommonAccessCardID           string
	EncryptedBallotSignatureHash []byte
}

// decodeRecords reads a flat sequence of tag/length/value records until
// the buffer is exhausted.
func decodeRecords(raw []byte) (map[byte][]byte, error) {
	records := make(map[byte][]byte)
	r := bytes.NewReader(raw)
	for r.Len() > 0 {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("reading tag: %w", err)
		}
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading length for tag 0x%02x: %w", tag, err)
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(r, value); err != nil {
			return nil, fmt.Errorf("reading value for tag 0x%02x: %w", tag, err)
		}
		records[tag] = value
	}
	return records, nil
}

// DecodeSignedBuffer decodes the outer TLV record scanned off a mailing
// label.
func DecodeSignedBuffer(raw []byte) (SignedBuffer, error) {
	records, err := decodeRecords(raw)
	if err != nil {
		return SignedBuffer{}, err
	}
	buffer, ok := records[tagBuffer]
	if !ok {
		return SignedBuffer{}, fmt.Errorf("signed buffer missing buffer field")
	}
	return SignedBuffer{Buffer: buffer, Signature: records[tagSignature]}, nil
}

// DecodeBallotVerificationPayload decodes the inner TLV record a
// SignedBuffer's Buffer carries.
func DecodeBallotVerificationPayload(raw []byte) (BallotVerificationPayload, error) {
	records, err := decodeRecords(raw)
	if err != nil {
		return BallotVerificationPayload{}, err
	}

	machineID, ok := records[tagMachineID]
	if !ok {
		return BallotVerificationPayload{}, fmt.Errorf("ballot verification payload missing machine id")
	}
	electionIDBytes, ok := records[tagElectionObjectID]
	if !ok {
		return BallotVerificationPayload{}, fmt.Errorf("ballot verification payload missing election object id")
	}
	electionID, err := uuid.FromBytes(electionIDBytes)
	if err != nil {
		return BallotVerificationPayload{}, fmt.Errorf("decoding election object id: %w", err)
	}
	commonAccessCardID, ok := records[tagCommonAccessCardID]
	if !ok {
		return BallotVerificationPayload{}, fmt.Errorf("ballot verification payload missing common access card id")
	}

	return BallotVerificationPayload{
		MachineID:                    string(machineID),
		ElectionObjectID:             electionID,
		CommonAccessCardID:           string(commonAccessCardID),
		EncryptedBallotSignatureHash: records[tagEncryptedBallotSignatureHash],
	}, nil
}
