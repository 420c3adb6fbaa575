package crc_test

import (
	"testing"

	"github.com/mynewt-forge/flashboot/artifact/crc"
)

func TestChecksumDeterministic(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}
	a := crc.Checksum(data)
	b := crc.Checksum(data)
	if a != b {
		t.Fatalf("checksum not deterministic: %x vs %x", a, b)
	}
}

func TestChecksumMatchesKnownIEEEVector(t *testing.T) {
	// CRC-32/IEEE ("check" value) of the ASCII string "123456789".
	got := crc.Checksum([]byte("123456789"))
	want := uint32(0xcbf43926)
	if got != want {
		t.Fatalf("CRC-32 of check string = 0x%x, want 0x%x", got, want)
	}
}

func TestStreamingMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	oneShot := crc.Checksum(data)

	state := crc.New()
	state.Write(data[:10])
	state.Write(data[10:])

	if state.Sum32() != oneShot {
		t.Fatalf("streaming checksum 0x%x != one-shot 0x%x", state.Sum32(), oneShot)
	}
}

func TestEmptyInput(t *testing.T) {
	if crc.Checksum(nil) != 0 {
		t.Fatalf("expected checksum of empty input to be 0")
	}
}
