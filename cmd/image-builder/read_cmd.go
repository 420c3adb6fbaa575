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

	"github.com/spf13/cobra"

	"github.com/mynewt-forge/flashboot/artifact/container"
)

func printCopy(name string, copy container.CopyReport) {
	if copy.Invalid != nil {
		fmt.Printf("copy %s: INVALID (%s)\n", name, copy.Invalid.Error())
		return
	}

	rec := copy.Record
	fmt.Printf("copy %s: valid, version=%d preferred_slot=%d\n", name, rec.Version, rec.PreferredSlot)
	for i := 0; i < 3; i++ {
		if rec.SlotLengths[i] == 0 {
			fmt.Printf("  slot %d: absent\n", i+1)
			continue
		}
		fmt.Printf("  slot %d: length=%d crc=0x%08x\n", i+1, rec.SlotLengths[i], rec.SlotCRCs[i])
	}
}

func addReadCmd(root *cobra.Command) {
	var inputPath string

	readCmd := &cobra.Command{
		Use:   "read",
		Short: "Parse and verify both metadata copies of a flash image",
		Run: func(cmd *cobra.Command, args []string) {
			if inputPath == "" {
				usage(cmd, badArguments("-i/--input is required"))
			}

			report, err := container.Read(inputPath)
			if opErr, ok := err.(*container.OpError); ok &&
				(opErr.Kind == container.KindIoError || opErr.Kind == container.KindWrongImageSize) {
				usage(cmd, err)
			}

			printCopy("A", report.CopyA)
			printCopy("B", report.CopyB)
			if report.Divergent {
				fmt.Println("copies diverge")
			}

			if err != nil {
				usage(cmd, err)
			}
		},
	}

	readCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input image path")

	root.AddCommand(readCmd)
}
