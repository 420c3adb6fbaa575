package metadata_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mynewt-forge/flashboot/artifact/crc"
	"github.com/mynewt-forge/flashboot/artifact/metadata"
)

func validRecordTest() metadata.Record {
	payload1 := bytes.Repeat([]byte{0xaa}, 100)
	payload2 := bytes.Repeat([]byte{0xbb}, 200)

	return metadata.Record{
		Version:       3,
		PreferredSlot: 2,
		SlotLengths:   [3]uint32{100, 200, 0},
		SlotCRCs:      [3]uint32{crc.Checksum(payload1), crc.Checksum(payload2), 0},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := validRecordTest()

	enc, err := metadata.Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}
	if len(enc) != metadata.Size {
		t.Fatalf("encoded record is %d bytes, want %d", len(enc), metadata.Size)
	}

	got, verr, err := metadata.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %s", err.Error())
	}
	if verr != nil {
		t.Fatalf("Decode reported invalid: %s", verr.Error())
	}
	if got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	enc, err := metadata.Encode(validRecordTest())
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}
	enc[0] ^= 0xff

	_, verr, err := metadata.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %s", err.Error())
	}
	if verr == nil || verr.Reason != metadata.BadMagic {
		t.Fatalf("expected BadMagic, got %+v", verr)
	}
}

func TestDecodeBadSelfCRC(t *testing.T) {
	enc, err := metadata.Encode(validRecordTest())
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}
	enc[len(enc)-1] ^= 0xff

	_, verr, err := metadata.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %s", err.Error())
	}
	if verr == nil || verr.Reason != metadata.BadSelfCRC {
		t.Fatalf("expected BadSelfCRC, got %+v", verr)
	}
}

func TestDecodeBadPreferredSlot(t *testing.T) {
	rec := validRecordTest()
	rec.PreferredSlot = 7

	enc, err := metadata.Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %s", err.Error())
	}

	_, verr, err := metadata.Decode(enc)
	if err != nil {
		t.Fatalf("Decode failed: %s", err.Error())
	}
	if verr == nil || verr.Reason != metadata.BadPreferredSlot {
		t.Fatalf("expected BadPreferredSlot, got %+v", verr)
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, _, err := metadata.Decode(make([]byte, metadata.Size-1))
	if err == nil {
		t.Fatalf("expected error decoding a truncated record")
	}
}

type fakeSlotReader struct {
	slots map[int][]byte
}

func (f fakeSlotReader) ReadSlot(slot int, n uint32) (io.Reader, error) {
	data := f.slots[slot]
	return bytes.NewReader(data[:n]), nil
}

func TestIsValidSlotCRCMatch(t *testing.T) {
	payload1 := bytes.Repeat([]byte{0xaa}, 100)
	payload2 := bytes.Repeat([]byte{0xbb}, 200)

	rec := metadata.Record{
		Version:       1,
		PreferredSlot: 1,
		SlotLengths:   [3]uint32{100, 200, 0},
		SlotCRCs:      [3]uint32{crc.Checksum(payload1), crc.Checksum(payload2), 0},
	}

	sr := fakeSlotReader{slots: map[int][]byte{1: payload1, 2: payload2}}

	verr, err := metadata.IsValid(rec, sr)
	if err != nil {
		t.Fatalf("IsValid failed: %s", err.Error())
	}
	if verr != nil {
		t.Fatalf("expected valid record, got %s", verr.Error())
	}
}

func TestIsValidSlotCRCMismatch(t *testing.T) {
	payload1 := bytes.Repeat([]byte{0xaa}, 100)
	corrupted := bytes.Repeat([]byte{0xcc}, 100)

	rec := metadata.Record{
		Version:       1,
		PreferredSlot: 1,
		SlotLengths:   [3]uint32{100, 0, 0},
		SlotCRCs:      [3]uint32{crc.Checksum(payload1), 0, 0},
	}

	sr := fakeSlotReader{slots: map[int][]byte{1: corrupted}}

	verr, err := metadata.IsValid(rec, sr)
	if err != nil {
		t.Fatalf("IsValid failed: %s", err.Error())
	}
	if verr == nil || verr.Reason != metadata.SlotCRCMismatch || verr.Slot != 1 {
		t.Fatalf("expected SlotCRCMismatch on slot 1, got %+v", verr)
	}
}
