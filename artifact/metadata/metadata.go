/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package metadata defines the fixed-size metadata record placed at the
// start of each of the two redundant metadata pages, and its encode,
// decode, and validate operations.
//
//  0                   1                   2                   3
//  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         Magic (4)                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                         Version (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |Pref. slot(1) |          0xff padding (3)                     |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 1 length (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 2 length (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 3 length (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 1 CRC-32 (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 2 CRC-32 (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Slot 3 CRC-32 (4)                          |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
// |                   Self CRC-32 (4)                            |
// +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// Total length: 40 bytes. Self CRC-32 covers every preceding byte.
package metadata

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/mynewt-forge/flashboot/artifact/crc"
	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
)

// Size is the fixed on-flash length of one encoded record: the 36-byte
// wireRecord plus the 4-byte self_crc appended after it.
const Size = 40

// MagicValue is the record's magic number, shared with the layout package
// so the container and device packages never disagree about it.
const MagicValue = layout.MAGIC

// maxSlotSize bounds a decoded slot length against the compiled-in layout,
// rejecting a record before it can drive a read past a slot's end.
const maxSlotSize = layout.SlotSize

// wireRecord is the exact byte layout of a Record, minus self_crc which is
// appended by hand so it can be computed over everything before it. Pad is
// filled with 0xff, matching erased flash, rather than left as zero.
type wireRecord struct {
	Magic         uint32
	Version       uint32
	PreferredSlot uint8
	Pad           [3]byte
	SlotLengths   [3]uint32
	SlotCRCs      [3]uint32
}

// Record is the decoded, in-memory form of one metadata copy.
type Record struct {
	Version       uint32
	PreferredSlot uint8
	SlotLengths   [3]uint32
	SlotCRCs      [3]uint32
}

// Reason identifies why a decoded record failed validation. The zero value,
// Valid, means the record passed every check in spec §3 invariant 1.
type Reason int

const (
	Valid Reason = iota
	BadMagic
	BadSelfCRC
	BadPreferredSlot
	SlotLengthOutOfRange
	SlotCRCMismatch
)

func (r Reason) String() string {
	switch r {
	case Valid:
		return "valid"
	case BadMagic:
		return "bad magic"
	case BadSelfCRC:
		return "bad self CRC"
	case BadPreferredSlot:
		return "bad preferred slot"
	case SlotLengthOutOfRange:
		return "slot length out of range"
	case SlotCRCMismatch:
		return "slot CRC mismatch"
	default:
		return "unknown"
	}
}

// ValidationError reports why Decode (or slot re-verification) rejected a
// record. It is one error type distinguished by a Reason code, the same
// "kind, not hierarchy" taxonomy spec §7 calls for.
type ValidationError struct {
	Reason Reason
	Slot   int // meaningful only for SlotLengthOutOfRange/SlotCRCMismatch
}

func (e *ValidationError) Error() string {
	return e.Reason.String()
}

// Encode serializes rec in declared field order and computes self_crc last.
func Encode(rec Record) ([]byte, error) {
	wr := wireRecord{
		Magic:         MagicValue,
		Version:       rec.Version,
		PreferredSlot: rec.PreferredSlot,
		Pad:           [3]byte{0xff, 0xff, 0xff},
		SlotLengths:   rec.SlotLengths,
		SlotCRCs:      rec.SlotCRCs,
	}

	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, &wr); err != nil {
		return nil, fwerr.Wrap(err)
	}

	selfCRC := crc.Checksum(buf.Bytes())

	out := buf.Bytes()
	tail := make([]byte, 4)
	binary.LittleEndian.PutUint32(tail, selfCRC)
	out = append(out, tail...)

	return out, nil
}

// Decode parses a record from the front of b and reports its self-validity
// (magic, preferred slot range, slot lengths in range, and self CRC).
// Slot CRCs against actual slot bytes are not checked here; call IsValid
// with a SlotReader for that. Decode never reads beyond Size bytes.
func Decode(b []byte) (Record, *ValidationError, error) {
	if len(b) < Size {
		return Record{}, nil, fwerr.Fmt(
			"metadata record truncated: need %d bytes, got %d", Size, len(b))
	}

	r := bytes.NewReader(b[:Size])

	var wr wireRecord
	if err := binary.Read(r, binary.LittleEndian, &wr); err != nil {
		return Record{}, nil, fwerr.Wrap(err)
	}

	var selfCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &selfCRC); err != nil {
		return Record{}, nil, fwerr.Wrap(err)
	}

	rec := Record{
		Version:       wr.Version,
		PreferredSlot: wr.PreferredSlot,
		SlotLengths:   wr.SlotLengths,
		SlotCRCs:      wr.SlotCRCs,
	}

	if wr.Magic != MagicValue {
		return rec, &ValidationError{Reason: BadMagic}, nil
	}

	if crc.Checksum(b[:Size-4]) != selfCRC {
		return rec, &ValidationError{Reason: BadSelfCRC}, nil
	}

	if rec.PreferredSlot < 1 || rec.PreferredSlot > 3 {
		return rec, &ValidationError{Reason: BadPreferredSlot}, nil
	}

	for i, length := range rec.SlotLengths {
		if length > maxSlotSize {
			return rec, &ValidationError{Reason: SlotLengthOutOfRange, Slot: i + 1}, nil
		}
	}

	if rec.SlotLengths[rec.PreferredSlot-1] == 0 {
		return rec, &ValidationError{Reason: SlotLengthOutOfRange, Slot: int(rec.PreferredSlot)}, nil
	}

	return rec, nil, nil
}

// SlotReader supplies the first n bytes of the given slot (1-3) as a
// stream, so slot CRC verification never requires buffering a whole slot.
type SlotReader interface {
	ReadSlot(slot int, n uint32) (io.Reader, error)
}

// IsValid re-verifies rec's slot CRCs by streaming each slot's declared
// length through the CRC engine via sr, on top of the self-consistency
// checks already implied by a nil ValidationError from Decode. It returns
// the first mismatch found, or nil if every non-empty slot's bytes match
// its recorded CRC.
func IsValid(rec Record, sr SlotReader) (*ValidationError, error) {
	if rec.PreferredSlot < 1 || rec.PreferredSlot > 3 {
		return &ValidationError{Reason: BadPreferredSlot}, nil
	}

	for i, length := range rec.SlotLengths {
		if length == 0 {
			continue
		}
		if length > maxSlotSize {
			return &ValidationError{Reason: SlotLengthOutOfRange, Slot: i + 1}, nil
		}

		reader, err := sr.ReadSlot(i+1, length)
		if err != nil {
			return nil, err
		}

		state := crc.New()
		buf := make([]byte, 4096)
		var remaining = length
		for remaining > 0 {
			n := uint32(len(buf))
			if n > remaining {
				n = remaining
			}
			if _, err := io.ReadFull(reader, buf[:n]); err != nil {
				return nil, fwerr.Wrap(err)
			}
			state.Write(buf[:n])
			remaining -= n
		}

		if state.Sum32() != rec.SlotCRCs[i] {
			return &ValidationError{Reason: SlotCRCMismatch, Slot: i + 1}, nil
		}
	}

	if rec.SlotLengths[rec.PreferredSlot-1] == 0 {
		return &ValidationError{Reason: SlotLengthOutOfRange, Slot: int(rec.PreferredSlot)}, nil
	}

	return nil, nil
}
