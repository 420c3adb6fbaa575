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

// Package flash defines the minimal contract boot logic needs from the
// on-chip flash driver, plus an in-memory implementation for tests and for
// the image-builder's simulate subcommand.
package flash

import (
	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
)

// Flash is the contract boot logic is written against. A real port backs
// it with memory-mapped loads and the chip's erase/program instructions;
// Sim backs it with a plain byte slice for host-side testing.
type Flash interface {
	Read(addr uint32, length uint32) ([]byte, error)
	ErasePage(pageAddr uint32) error
	Program(addr uint32, data []byte) error
	PageSize() uint32
}

// ProgramError reports an attempt to program flash that violates the
// alignment or erased-bytes-only rule.
type ProgramError struct {
	*fwerr.FlashError
}

func newProgramError(format string, args ...interface{}) *ProgramError {
	return &ProgramError{FlashError: fwerr.Fmt(format, args...)}
}

// programUnit is the double-word programming granularity on this family.
const programUnit = 8

// Sim is a RAM-backed Flash implementation. It enforces the same
// alignment and erase-before-write rules a real device would, so tests
// written against it catch boot-logic bugs that would corrupt real flash.
type Sim struct {
	data     []byte
	pageSize uint32
}

// NewSim wraps an existing image buffer (typically loaded from a container
// file) as simulated flash. The slice is used directly, not copied.
func NewSim(data []byte, mode layout.BankMode) *Sim {
	return &Sim{data: data, pageSize: layout.PageSize(mode)}
}

func (s *Sim) Read(addr uint32, length uint32) ([]byte, error) {
	end := uint64(addr) + uint64(length)
	if end > uint64(len(s.data)) {
		return nil, fwerr.Fmt("read past end of flash: addr=0x%x len=%d", addr, length)
	}
	out := make([]byte, length)
	copy(out, s.data[addr:end])
	return out, nil
}

func (s *Sim) ErasePage(pageAddr uint32) error {
	start := (pageAddr / s.pageSize) * s.pageSize
	end := uint64(start) + uint64(s.pageSize)
	if end > uint64(len(s.data)) {
		return fwerr.Fmt("erase past end of flash: addr=0x%x", pageAddr)
	}
	for i := start; uint64(i) < end; i++ {
		s.data[i] = 0xff
	}
	return nil
}

func (s *Sim) Program(addr uint32, data []byte) error {
	if addr%programUnit != 0 {
		return newProgramError("program address 0x%x not aligned to %d bytes", addr, programUnit)
	}
	if len(data)%programUnit != 0 {
		return newProgramError("program length %d not aligned to %d bytes", len(data), programUnit)
	}

	end := uint64(addr) + uint64(len(data))
	if end > uint64(len(s.data)) {
		return newProgramError("program past end of flash: addr=0x%x len=%d", addr, len(data))
	}

	for i := range data {
		if s.data[uint64(addr)+uint64(i)] != 0xff {
			return newProgramError("program to non-erased byte at 0x%x", uint64(addr)+uint64(i))
		}
	}

	copy(s.data[addr:end], data)
	return nil
}

func (s *Sim) PageSize() uint32 {
	return s.pageSize
}

// Bytes returns the simulator's underlying buffer, for tests that want to
// inspect the resulting flash contents directly.
func (s *Sim) Bytes() []byte {
	return s.data
}
