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

package main

import (
	"fmt"
	"io/ioutil"

	"github.com/spf13/cobra"

	"github.com/mynewt-forge/flashboot/artifact/container"
	"github.com/mynewt-forge/flashboot/artifact/layout"
	"github.com/mynewt-forge/flashboot/device/boot"
	"github.com/mynewt-forge/flashboot/device/flash"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
)

// addSimulateCmd registers a diagnostic command with no counterpart in
// spec §6: it loads a container file into an in-memory flash.Sim, applies
// an optional byte-range corruption, runs the boot/recovery state machine
// against it, and reports what happened. This is the host-side stand-in
// for flashing real hardware and observing the boot outcome.
func addSimulateCmd(root *cobra.Command) {
	var inputPath string
	var corruptOffset int
	var corruptLength int
	var dualBank bool

	simCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the boot/recovery state machine against a flash image in memory",
		Run: func(cmd *cobra.Command, args []string) {
			if inputPath == "" {
				usage(cmd, badArguments("-i/--input is required"))
			}

			data, err := ioutil.ReadFile(inputPath)
			if err != nil {
				usage(cmd, &container.OpError{
					FlashError: fwerr.Wrapf(err, "reading %s: %s", inputPath, err.Error()),
					Kind:       container.KindIoError,
				})
			}
			if len(data) != layout.TotalFlashSize {
				usage(cmd, formatInvalid("image is %d bytes, want %d", len(data), layout.TotalFlashSize))
			}

			if corruptLength > 0 {
				end := corruptOffset + corruptLength
				if end > len(data) {
					end = len(data)
				}
				for i := corruptOffset; i < end; i++ {
					data[i] = 0xff
				}
				fmt.Printf("corrupted [0x%x, 0x%x) with 0xff\n", corruptOffset, end)
			}

			mode := layout.SingleBank
			if dualBank {
				mode = layout.DualBank
			}
			sim := flash.NewSim(data, mode)

			ram := make([]byte, layout.SlotSizeBytes())
			result, err := boot.Run(sim, boot.Options{RAMBase: layout.RAMBase, RAM: ram})
			if err != nil {
				usage(cmd, err)
			}

			if result.Outcome == boot.Failed {
				fmt.Println("outcome: FAIL (no bootable image)")
				return
			}

			fmt.Printf("outcome: BOOTED, selected copy %s, preferred_slot=%d, staged=%d bytes\n",
				result.Selected, result.PreferredSlot, result.StagedLength)
			if result.Repaired != nil {
				status := "ok"
				if result.RepairFailed {
					status = "failed (non-fatal)"
				}
				fmt.Printf("repaired copy %s: %s\n", *result.Repaired, status)
			}
		},
	}

	simCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input image path")
	simCmd.Flags().IntVar(&corruptOffset, "corrupt-offset", 0,
		"Byte offset to corrupt before simulating boot")
	simCmd.Flags().IntVar(&corruptLength, "corrupt-length", 0,
		"Number of bytes to corrupt, starting at --corrupt-offset")
	simCmd.Flags().BoolVar(&dualBank, "dual-bank", false,
		"Simulate dual-bank page size instead of single-bank")

	root.AddCommand(simCmd)
}
