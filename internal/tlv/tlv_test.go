package tlv

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
)

// encodeRecord appends one tag/length/value record, mirroring the shape
// decodeRecords expects — used here only to build test fixtures.
func encodeRecord(buf *bytes.Buffer, tag byte, value []byte) {
	buf.WriteByte(tag)
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(value)))
	buf.Write(length[:])
	buf.Write(value)
}

func TestDecodeBallotVerificationPayloadRoundTrip(t *testing.T) {
	electionID := uuid.New()
	var buf bytes.Buffer
	encodeRecord(&buf, tagMachineID, []byte("VX-MAIL-01"))
	electionIDBytes, _ := electionID.MarshalBinary()
	encodeRecord(&buf, tagElectionObjectID, electionIDBytes)
	encodeRecord(&buf, tagCommonAccessCardID, []byte("CAC-123456"))
	encodeRecord(&buf, tagEncryptedBallotSignatureHash, []byte{0xde, 0xad, 0xbe, 0xef})

	payload, err := DecodeBallotVerificationPayload(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBallotVerificationPayload() error = %v", err)
	}
	if payload.MachineID != "VX-MAIL-01" {
		t.Errorf("MachineID = %q, want VX-MAIL-01", payload.MachineID)
	}
	if payload.ElectionObjectID != electionID {
		t.Errorf("ElectionObjectID = %v, want %v", payload.ElectionObjectID, electionID)
	}
	if payload.CommonAccessCardID != "CAC-123456" {
		t.Errorf("CommonAccessCardID = %q, want CAC-123456", payload.CommonAccessCardID)
	}
	if !bytes.Equal(payload.EncryptedBallotSignatureHash, []byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Errorf("EncryptedBallotSignatureHash = %x, want deadbeef", payload.EncryptedBallotSignatureHash)
	}
}

func TestDecodeSignedBufferRoundTrip(t *testing.T) {
	inner := []byte("inner payload bytes")
	sig := []byte("signature bytes")
	var buf bytes.Buffer
	encodeRecord(&buf, tagBuffer, inner)
	encodeRecord(&buf, tagSignature, sig)

	sb, err := DecodeSignedBuffer(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeSignedBuffer() error = %v", err)
	}
	if !bytes.Equal(sb.Buffer, inner) {
		t.Errorf("Buffer = %q, want %q", sb.Buffer, inner)
	}
	if !bytes.Equal(sb.Signature, sig) {
		t.Errorf("Signature = %q, want %q", sb.Signature, sig)
	}
}

func TestDecodeSignedBufferMissingBufferField(t *testing.T) {
	var buf bytes.Buffer
	encodeRecord(&buf, tagSignature, []byte("sig only"))

	_, err := DecodeSignedBuffer(buf.Bytes())
	if err == nil {
		t.Errorf("expected an error when the buffer field is absent")
	}
}

func TestDecodeBallotVerificationPayloadMissingMachineID(t *testing.T) {
	var buf bytes.Buffer
	encodeRecord(&buf, tagCommonAccessCardID, []byte("CAC-1"))

	_, err := DecodeBallotVerificationPayload(buf.Bytes())
	if err == nil {
		t.Errorf("expected an error when machine id is absent")
	}
}
