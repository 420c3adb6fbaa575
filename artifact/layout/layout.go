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

// Package layout is the single source of truth for the on-flash address
// map. Both the host-side image builder (artifact/container) and the
// on-device boot logic (device/boot) link against this package so the two
// sides can never silently drift apart on an offset or size.
package layout

import "github.com/mynewt-forge/flashboot/internal/fwerr"

// MAGIC identifies a valid metadata record. It has no cryptographic
// significance; it exists to distinguish a real record from erased (0xff)
// or otherwise uninitialized flash.
const MAGIC = 0x464c4252 // "FLBR"

const (
	// TotalFlashSize is the size of the whole flash image: 2 MiB.
	TotalFlashSize = 0x200000

	// BootloaderMaxSize is the maximum size of the bootloader binary.
	BootloaderMaxSize = 0x2000

	// MetadataAAddr and MetadataBAddr are the two redundant metadata page
	// addresses. They are spaced a full single-bank page apart so that a
	// page erase of one never touches the other, in either bank mode.
	MetadataAAddr = 0x2000
	MetadataBAddr = 0x4000

	// SlotSize is the size of each of the three OS payload slots.
	SlotSize = 0x7E000

	Slot1Addr = 0x6000
	Slot2Addr = Slot1Addr + SlotSize
	Slot3Addr = Slot2Addr + SlotSize

	// RAMBase is where the bootloader stages the selected OS image before
	// handing off control.
	RAMBase = 0x20000000
)

// BankMode selects the chip's flash bank configuration, which determines
// the page-erase granularity for the metadata pages. It never changes the
// container format itself (see spec §9: the larger, single-bank page size
// is always reserved so the same file boots in either mode).
type BankMode int

const (
	SingleBank BankMode = iota
	DualBank
)

// PageSize returns the flash page size for the given bank mode.
func PageSize(mode BankMode) uint32 {
	switch mode {
	case DualBank:
		return 0x1000
	default:
		return 0x2000
	}
}

// Region describes one named, non-overlapping span of the flash image.
type Region struct {
	Name string
	Addr uint32
	Size uint32
}

func (r Region) end() uint32 {
	return r.Addr + r.Size
}

// Regions returns the fixed top-level layout of the flash image, in
// address order. MetadataA/MetadataB are sized to the larger (single-bank)
// page so the table is correct regardless of the target's bank mode.
func Regions() []Region {
	return []Region{
		{Name: "bootloader", Addr: 0, Size: BootloaderMaxSize},
		{Name: "metadata-a", Addr: MetadataAAddr, Size: PageSize(SingleBank)},
		{Name: "metadata-b", Addr: MetadataBAddr, Size: PageSize(SingleBank)},
		{Name: "slot-1", Addr: Slot1Addr, Size: SlotSize},
		{Name: "slot-2", Addr: Slot2Addr, Size: SlotSize},
		{Name: "slot-3", Addr: Slot3Addr, Size: SlotSize},
	}
}

// SlotAddr returns the flash address of the given slot (1, 2, or 3).
func SlotAddr(slot int) (uint32, error) {
	switch slot {
	case 1:
		return Slot1Addr, nil
	case 2:
		return Slot2Addr, nil
	case 3:
		return Slot3Addr, nil
	default:
		return 0, fwerr.Fmt("invalid slot number: %d", slot)
	}
}

// SlotSizeBytes returns the fixed size of every slot.
func SlotSizeBytes() uint32 {
	return SlotSize
}

// MetadataAddr returns the flash address of metadata copy 'A' or 'B'.
func MetadataAddr(copy byte) (uint32, error) {
	switch copy {
	case 'A':
		return MetadataAAddr, nil
	case 'B':
		return MetadataBAddr, nil
	default:
		return 0, fwerr.Fmt("invalid metadata copy: %c", copy)
	}
}

func regionsDistinct(a, b Region) bool {
	lo, hi := a, b
	if lo.Addr > hi.Addr {
		lo, hi = hi, lo
	}
	return lo.end() <= hi.Addr
}

// Overlaps reports every pair of compiled-in regions that overlap. A
// non-empty result indicates a broken constant table; it is checked once
// by the package test suite so an edit to the constants above that breaks
// the layout fails loudly at test time rather than corrupting images
// silently.
func Overlaps() [][2]Region {
	regions := Regions()

	var bad [][2]Region
	for i := 0; i < len(regions); i++ {
		for j := i + 1; j < len(regions); j++ {
			if !regionsDistinct(regions[i], regions[j]) {
				bad = append(bad, [2]Region{regions[i], regions[j]})
			}
		}
	}

	return bad
}
