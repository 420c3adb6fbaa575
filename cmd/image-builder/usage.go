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
	"os"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"github.com/mynewt-forge/flashboot/artifact/container"
	"github.com/mynewt-forge/flashboot/internal/fwerr"
)

// exitCode maps an error returned by a subcommand's run function to the
// exit code taxonomy in spec §6: 0 success, 1 bad arguments, 2 I/O error,
// 3 size-limit violation, 4 read-time format failure, other non-zero for
// anything unexpected.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	if opErr, ok := err.(*container.OpError); ok {
		switch opErr.Kind {
		case container.KindIoError:
			return 2
		case container.KindBootloaderTooLarge, container.KindSlotTooLarge:
			return 3
		case container.KindMissingRequiredSlot:
			return 1
		case container.KindNoValidCopy, container.KindMetadataDivergence, container.KindWrongImageSize:
			return 4
		}
	}

	switch err.(type) {
	case *badArgumentsError:
		return 1
	case *formatInvalidError:
		return 4
	}

	return 5
}

// badArgumentsError and formatInvalidError are distinguished by type, not
// by message text, so exitCode never has to compare strings.
type badArgumentsError struct{ *fwerr.FlashError }
type formatInvalidError struct{ *fwerr.FlashError }

func badArguments(format string, args ...interface{}) error {
	return &badArgumentsError{fwerr.Fmt(format, args...)}
}

func formatInvalid(format string, args ...interface{}) error {
	return &formatInvalidError{fwerr.Fmt(format, args...)}
}

// flashError extracts the *fwerr.FlashError embedded in err, whatever
// domain-specific wrapper (container.OpError, badArgumentsError, ...) put
// it there, so usage can log its stack trace without naming every wrapper.
func flashError(err error) *fwerr.FlashError {
	switch e := err.(type) {
	case *fwerr.FlashError:
		return e
	case *container.OpError:
		return e.FlashError
	case *badArgumentsError:
		return e.FlashError
	case *formatInvalidError:
		return e.FlashError
	default:
		return nil
	}
}

// usage prints err (and its stack trace at debug level) then exits with
// the code exitCode maps it to. A nil err is treated as a plain usage
// request, printing help and exiting 1.
func usage(cmd *cobra.Command, err error) {
	if err != nil {
		if fe := flashError(err); fe != nil {
			log.Debugf("%s", fe.StackTrace)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	}

	code := exitCode(err)
	if err == nil {
		code = 1
	}

	if cmd != nil && err == nil {
		cmd.Help()
	}

	os.Exit(code)
}
