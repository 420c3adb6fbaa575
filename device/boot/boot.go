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

// Package boot implements the reset-time metadata selection, repair, RAM
// staging, and hand-off state machine. Run is the sole entry point; it
// touches nothing but the flash.Flash it is given, so it can be exercised
// off-hardware by feeding it a flash.Sim.
package boot

import (
	"bytes"
	"io"

	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/artifact/metadata"
	"github.com/mynewt-forge/flashboot/device/flash"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
	log "github.com/sirupsen/logrus"
)

// programUnit mirrors flash.Sim's alignment requirement; a real port's
// value would come from the same chip family constant.
const programUnit = 8

func alignUp(n int, unit int) int {
	if n%unit == 0 {
		return n
	}
	return n + (unit - n%unit)
}

// Copy identifies which of the two redundant metadata pages a result or
// repair refers to.
type Copy int

const (
	CopyA Copy = iota
	CopyB
)

func (c Copy) String() string {
	if c == CopyA {
		return "A"
	}
	return "B"
}

func (c Copy) addr() (uint32, error) {
	if c == CopyA {
		return layout.MetadataAddr('A')
	}
	return layout.MetadataAddr('B')
}

func (c Copy) other() Copy {
	if c == CopyA {
		return CopyB
	}
	return CopyA
}

// Options configures one call to Run. RAMBase and RAM are injectable so
// host tests can stage into a plain buffer instead of a real memory map.
type Options struct {
	RAMBase uint32
	RAM     []byte // must be at least as long as the largest slot
}

// Outcome classifies how Run concluded.
type Outcome int

const (
	// Booted means a metadata copy was selected, its payload staged into
	// RAM, and the bootloader is ready to hand off.
	Booted Outcome = iota
	// Failed means no bootable image could be found (S_FAIL).
	Failed
)

// Result reports what Run decided and did.
type Result struct {
	Outcome       Outcome
	Selected      Copy
	PreferredSlot uint8
	StagedLength  uint32
	Repaired      *Copy // non-nil if a repair was attempted
	RepairFailed  bool  // erasing or programming failed during repair; non-fatal
}

func readRecord(f flash.Flash, c Copy) (metadata.Record, *metadata.ValidationError, []byte, error) {
	addr, err := c.addr()
	if err != nil {
		return metadata.Record{}, nil, nil, fwerr.Wrap(err)
	}

	raw, err := f.Read(addr, metadata.Size)
	if err != nil {
		return metadata.Record{}, nil, nil, fwerr.Wrap(err)
	}

	rec, verr, err := metadata.Decode(raw)
	if err != nil {
		return metadata.Record{}, &metadata.ValidationError{Reason: metadata.BadMagic}, raw, nil
	}
	return rec, verr, raw, nil
}

func slotsValid(f flash.Flash, rec metadata.Record) (*metadata.ValidationError, error) {
	return metadata.IsValid(rec, metadataSlotReader{f: f})
}

// metadataSlotReader satisfies metadata.SlotReader directly over a
// flash.Flash. Each ReadSlot call reads the slot's whole declared length
// with one flash Read and serves the stream from that buffer; the slot is
// not read from flash in smaller pieces.
type metadataSlotReader struct {
	f flash.Flash
}

func (m metadataSlotReader) ReadSlot(slot int, n uint32) (io.Reader, error) {
	addr, err := layout.SlotAddr(slot)
	if err != nil {
		return nil, fwerr.Wrap(err)
	}
	data, err := m.f.Read(addr, n)
	if err != nil {
		return nil, fwerr.Wrap(err)
	}
	return bytes.NewReader(data), nil
}

// classify picks which copy to use and which (if any) needs repair,
// following the S1 rule: exactly one valid wins outright; both valid and
// equal needs no repair; both valid and differing picks the higher
// version, tying toward A.
func classify(recA, recB metadata.Record, validA, validB bool) (selected Copy, repair *Copy, ok bool) {
	switch {
	case validA && !validB:
		other := CopyB
		return CopyA, &other, true
	case validB && !validA:
		other := CopyA
		return CopyB, &other, true
	case validA && validB:
		if recA == recB {
			return CopyA, nil, true
		}
		if recB.Version > recA.Version {
			other := CopyA
			return CopyB, &other, true
		}
		other := CopyB
		return CopyA, &other, true
	default:
		return CopyA, nil, false
	}
}

// Run executes the reset-time state machine against f and returns the
// outcome. It never touches slot regions except to read them.
func Run(f flash.Flash, opts Options) (Result, error) {
	recA, verrA, _, err := readRecord(f, CopyA)
	if err != nil {
		return Result{}, err
	}
	recB, verrB, _, err := readRecord(f, CopyB)
	if err != nil {
		return Result{}, err
	}

	validA := verrA == nil
	validB := verrB == nil

	selected, repair, ok := classify(recA, recB, validA, validB)
	if !ok {
		log.Warnf("no valid metadata copy found")
		return Result{Outcome: Failed}, nil
	}

	chosenRec := recA
	if selected == CopyB {
		chosenRec = recB
	}

	// S2: re-verify the chosen copy's slot CRCs against actual slot bytes.
	slotVerr, err := slotsValid(f, chosenRec)
	if err != nil {
		return Result{}, err
	}
	if slotVerr != nil {
		log.Warnf("metadata copy %s slot verification failed: %s", selected, slotVerr.Error())

		alt := selected.other()
		altValid := validB
		altRec := recB
		if alt == CopyA {
			altValid = validA
			altRec = recA
		}
		if !altValid {
			return Result{Outcome: Failed}, nil
		}
		altSlotVerr, err := slotsValid(f, altRec)
		if err != nil {
			return Result{}, err
		}
		if altSlotVerr != nil {
			return Result{Outcome: Failed}, nil
		}

		selected = alt
		chosenRec = altRec
		other := alt.other()
		repair = &other
	}

	result := Result{
		Outcome:       Booted,
		Selected:      selected,
		PreferredSlot: chosenRec.PreferredSlot,
	}

	// S3: repair the stale/broken copy if its bytes differ from the
	// chosen serialization. Idempotent: matching bytes mean no erase.
	if repair != nil {
		repaired, repairFailed, err := maybeRepair(f, *repair, chosenRec)
		if err != nil {
			return Result{}, err
		}
		if repaired {
			result.Repaired = repair
		}
		result.RepairFailed = repairFailed
	}

	// S4: stage the preferred slot's bytes into RAM.
	slotAddr, err := layout.SlotAddr(int(chosenRec.PreferredSlot))
	if err != nil {
		return Result{}, err
	}
	length := chosenRec.SlotLengths[chosenRec.PreferredSlot-1]

	data, err := f.Read(slotAddr, length)
	if err != nil {
		return Result{}, err
	}
	if uint32(len(opts.RAM)) < length {
		return Result{}, fwerr.Fmt("RAM staging buffer too small: have %d, need %d", len(opts.RAM), length)
	}
	copy(opts.RAM[:length], data)
	result.StagedLength = length

	// S5: hand-off is the caller's responsibility (jumping to RAMBase is
	// architecture-specific and outside what a hosted Go process can do);
	// Run's job ends once the image is staged and verified.
	return result, nil
}

func maybeRepair(f flash.Flash, target Copy, chosenRec metadata.Record) (repaired bool, repairFailed bool, err error) {
	addr, aerr := target.addr()
	if aerr != nil {
		return false, false, fwerr.Wrap(aerr)
	}

	encoded, eerr := metadata.Encode(chosenRec)
	if eerr != nil {
		return false, false, fwerr.Wrap(eerr)
	}

	current, rerr := f.Read(addr, uint32(len(encoded)))
	if rerr != nil {
		return false, false, fwerr.Wrap(rerr)
	}

	if bytesEqual(current, encoded) {
		return false, false, nil
	}

	if err := f.ErasePage(addr); err != nil {
		log.Warnf("repair of copy %s failed to erase: %s", target, err.Error())
		return true, true, nil
	}

	padded := make([]byte, alignUp(len(encoded), programUnit))
	for i := range padded {
		padded[i] = 0xff
	}
	copy(padded, encoded)

	if err := f.Program(addr, padded); err != nil {
		log.Warnf("repair of copy %s failed to program: %s", target, err.Error())
		return true, true, nil
	}

	return true, false, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
