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

// Package crc is the CRC-32 engine shared by the metadata record encoder
// and the boot-time slot verifier. It wraps the standard library's
// hash/crc32 with the IEEE 802.3 polynomial, exposed both as a one-shot
// Checksum function and as a streaming State so a slot's contents can be
// verified without buffering the whole slot in memory.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.IEEE)

// Checksum computes the IEEE 802.3 CRC-32 of b in one call.
func Checksum(b []byte) uint32 {
	return crc32.Checksum(b, table)
}

// State is a streaming CRC-32 accumulator. Its zero value is ready to use
// and represents the CRC of zero bytes.
type State struct {
	crc uint32
}

// New returns a fresh streaming CRC-32 state.
func New() State {
	return State{}
}

// Write folds b into the running checksum. It never fails and never
// allocates.
func (s *State) Write(b []byte) {
	s.crc = crc32.Update(s.crc, table, b)
}

// Sum32 returns the CRC-32 of every byte written so far.
func (s State) Sum32() uint32 {
	return s.crc
}
