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

// Package container assembles and verifies the 2 MiB flash image: a
// bootloader, two redundant metadata copies, and three OS payload slots.
package container

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/mynewt-forge/flashboot/artifact/crc"
	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/artifact/metadata"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
)

// WriteRequest is the input to Write: paths to read from and the metadata
// fields to record. SlotPaths[1] and [2] (slot 2 and 3) may be empty, in
// which case they default to a copy of SlotPaths[0]'s bytes.
type WriteRequest struct {
	BootloaderPath string
	SlotPaths      [3]string
	OutputPath     string
	PreferredSlot  uint8
	Version        uint32
}

// DefaultWriteRequest fills in the defaults spec'd for the CLI: preferred
// slot 1, version 1, output "output_image.bin".
func DefaultWriteRequest() WriteRequest {
	return WriteRequest{
		OutputPath:    "output_image.bin",
		PreferredSlot: 1,
		Version:       1,
	}
}

// Kind distinguishes the reasons Write and Read can fail with, so a CLI
// can map them to the exit codes in spec §6 without string matching.
type Kind int

const (
	KindNone Kind = iota
	KindBootloaderTooLarge
	KindSlotTooLarge
	KindMissingRequiredSlot
	KindIoError
	KindNoValidCopy
	KindMetadataDivergence
	KindWrongImageSize
)

// OpError carries the offending Kind alongside the wrapped FlashError so
// a caller can branch on Kind and still get a full message/stack trace.
type OpError struct {
	*fwerr.FlashError
	Kind Kind
}

func newOpError(kind Kind, fe *fwerr.FlashError) *OpError {
	return &OpError{FlashError: fe, Kind: kind}
}

// Write assembles req into a TotalFlashSize-byte image at req.OutputPath.
func Write(req WriteRequest) error {
	bootloader, err := ioutil.ReadFile(req.BootloaderPath)
	if err != nil {
		return newOpError(KindIoError, fwerr.Wrap(err))
	}
	if len(bootloader) > layout.BootloaderMaxSize {
		return newOpError(KindBootloaderTooLarge, fwerr.Fmt(
			"bootloader is %d bytes, exceeds %d-byte limit",
			len(bootloader), layout.BootloaderMaxSize))
	}

	if req.SlotPaths[0] == "" {
		return newOpError(KindMissingRequiredSlot, fwerr.Fmt("slot 1 is required"))
	}

	var slots [3][]byte
	for i, path := range req.SlotPaths {
		if path == "" {
			continue
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return newOpError(KindIoError, fwerr.Wrap(err))
		}
		if uint32(len(data)) > layout.SlotSizeBytes() {
			return newOpError(KindSlotTooLarge, fwerr.Fmt(
				"slot %d is %d bytes, exceeds %d-byte limit",
				i+1, len(data), layout.SlotSizeBytes()))
		}
		slots[i] = data
	}
	for i := 1; i < 3; i++ {
		if slots[i] == nil {
			slots[i] = slots[0]
		}
	}

	rec := metadata.Record{
		Version:       req.Version,
		PreferredSlot: req.PreferredSlot,
	}
	for i, data := range slots {
		rec.SlotLengths[i] = uint32(len(data))
		rec.SlotCRCs[i] = crc.Checksum(data)
	}

	encoded, err := metadata.Encode(rec)
	if err != nil {
		return fwerr.Wrap(err)
	}

	out := make([]byte, layout.TotalFlashSize)
	for i := range out {
		out[i] = 0xff
	}

	copy(out[0:], bootloader)
	copy(out[layout.MetadataAAddr:], encoded)
	copy(out[layout.MetadataBAddr:], encoded)

	slotAddrs := [3]uint32{layout.Slot1Addr, layout.Slot2Addr, layout.Slot3Addr}
	for i, data := range slots {
		copy(out[slotAddrs[i]:], data)
	}

	if err := ioutil.WriteFile(req.OutputPath, out, 0644); err != nil {
		return newOpError(KindIoError, fwerr.Wrap(err))
	}

	return nil
}

// CopyReport is the decode/validation outcome for one metadata copy.
type CopyReport struct {
	Record  metadata.Record
	Invalid *metadata.ValidationError // nil means this copy is valid
}

// ReadReport is the result of Read: both copies' reports plus whether the
// image as a whole is acceptable.
type ReadReport struct {
	CopyA, CopyB CopyReport
	Divergent    bool // both copies valid but disagree on fields
	Accepted     bool // at least one valid copy, and no divergence
}

type fileSlotReader struct {
	data []byte
}

func (f fileSlotReader) ReadSlot(slot int, n uint32) (io.Reader, error) {
	addr, err := layout.SlotAddr(slot)
	if err != nil {
		return nil, fwerr.Wrap(err)
	}
	end := uint64(addr) + uint64(n)
	if end > uint64(len(f.data)) {
		return nil, fwerr.Fmt("slot %d read extends past end of image", slot)
	}
	return bytes.NewReader(f.data[addr : uint32(addr)+n]), nil
}

// readCopy decodes and fully validates one metadata copy, including its
// slot CRCs. A malformed input (too short to hold a record, or a slot read
// that runs past the end of the image) is treated the same as BadMagic: a
// corrupted copy, not a program error.
func readCopy(data []byte, addr uint32, sr metadata.SlotReader) CopyReport {
	if int(addr)+metadata.Size > len(data) {
		return CopyReport{Invalid: &metadata.ValidationError{Reason: metadata.BadMagic}}
	}

	rec, verr, err := metadata.Decode(data[addr:])
	if err != nil {
		return CopyReport{Invalid: &metadata.ValidationError{Reason: metadata.BadMagic}}
	}
	if verr != nil {
		return CopyReport{Record: rec, Invalid: verr}
	}

	slotVerr, err := metadata.IsValid(rec, sr)
	if err != nil {
		return CopyReport{Record: rec, Invalid: &metadata.ValidationError{Reason: metadata.BadMagic}}
	}
	if slotVerr != nil {
		return CopyReport{Record: rec, Invalid: slotVerr}
	}

	return CopyReport{Record: rec}
}

// Read parses both metadata copies out of the image at inputPath and
// cross-checks them per spec §4.4.
func Read(inputPath string) (ReadReport, error) {
	data, err := ioutil.ReadFile(inputPath)
	if err != nil {
		return ReadReport{}, newOpError(KindIoError, fwerr.Wrap(err))
	}
	if len(data) != layout.TotalFlashSize {
		return ReadReport{}, newOpError(KindWrongImageSize, fwerr.Fmt(
			"image is %d bytes, want exactly %d", len(data), layout.TotalFlashSize))
	}

	sr := fileSlotReader{data: data}

	report := ReadReport{
		CopyA: readCopy(data, layout.MetadataAAddr, sr),
		CopyB: readCopy(data, layout.MetadataBAddr, sr),
	}

	validA := report.CopyA.Invalid == nil
	validB := report.CopyB.Invalid == nil

	switch {
	case validA && validB:
		if report.CopyA.Record != report.CopyB.Record {
			report.Divergent = true
			report.Accepted = false
		} else {
			report.Accepted = true
		}
	case validA || validB:
		report.Accepted = true
	default:
		report.Accepted = false
	}

	if !report.Accepted && !report.Divergent {
		return report, newOpError(KindNoValidCopy, fwerr.Fmt("no valid metadata copy"))
	}
	if report.Divergent {
		return report, newOpError(KindMetadataDivergence, fwerr.Fmt("metadata copies diverge"))
	}

	return report, nil
}
