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

// Command image-builder assembles and verifies flash images, and can
// simulate the on-device boot/recovery logic against one for host-side
// regression testing.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mynewt-forge/flashboot/internal/fwlog"
)

var logLevel string

func main() {
	rootCmd := &cobra.Command{
		Use:   "image-builder",
		Short: "Build and verify resilient flash images",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			fwlog.Init(logLevel)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "warn",
		"Log level (debug, info, warn, error)")

	addWriteCmd(rootCmd)
	addReadCmd(rootCmd)
	addSimulateCmd(rootCmd)

	rootCmd.Execute()
}
