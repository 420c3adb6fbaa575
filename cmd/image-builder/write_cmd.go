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
	"github.com/spf13/cobra"

	"github.com/mynewt-forge/flashboot/artifact/container"
	"github.com/mynewt-forge/flashboot/internal/fwlog"
)

func addWriteCmd(root *cobra.Command) {
	req := container.DefaultWriteRequest()

	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Assemble a bootloader and up to three OS slots into one flash image",
		Run: func(cmd *cobra.Command, args []string) {
			if req.BootloaderPath == "" {
				usage(cmd, badArguments("-b/--bootloader is required"))
			}
			if req.SlotPaths[0] == "" {
				usage(cmd, badArguments("-1/--slot1 is required"))
			}

			if err := container.Write(req); err != nil {
				usage(cmd, err)
			}

			fwlog.StatusMessage(fwlog.VerbosityDefault, "Wrote image %s\n", req.OutputPath)
		},
	}

	writeCmd.Flags().StringVarP(&req.BootloaderPath, "bootloader", "b", "",
		"Bootloader binary")
	writeCmd.Flags().StringVarP(&req.SlotPaths[0], "slot1", "1", "",
		"Slot 1 OS image")
	writeCmd.Flags().StringVarP(&req.SlotPaths[1], "slot2", "2", "",
		"Slot 2 OS image (defaults to slot 1 if omitted)")
	writeCmd.Flags().StringVarP(&req.SlotPaths[2], "slot3", "3", "",
		"Slot 3 OS image (defaults to slot 1 if omitted)")
	writeCmd.Flags().StringVarP(&req.OutputPath, "output", "o", req.OutputPath,
		"Output image path")

	preferred := int(req.PreferredSlot)
	version := int(req.Version)
	writeCmd.Flags().IntVar(&preferred, "preferred", preferred,
		"Preferred slot (1-3)")
	writeCmd.Flags().IntVar(&version, "version", version,
		"Metadata version")

	writeCmd.PreRun = func(cmd *cobra.Command, args []string) {
		req.PreferredSlot = uint8(preferred)
		req.Version = uint32(version)
	}

	root.AddCommand(writeCmd)
}
