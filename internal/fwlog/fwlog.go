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

// Package fwlog carries the verbosity-aware status/error printing and the
// logrus setup shared by the builder and CLI. device/boot logs through the
// same package-level logrus logger this package configures (via Init); it
// calls logrus directly rather than through StatusMessage/ErrorMessage
// since its warnings are diagnostic, not verbosity-gated user output.
package fwlog

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	VerbositySilent  = 0
	VerbosityQuiet   = 1
	VerbosityDefault = 2
	VerbosityVerbose = 3
)

// Verbosity gates StatusMessage/ErrorMessage output; it defaults to
// VerbosityDefault, matching the teacher tool's default.
var Verbosity = VerbosityDefault

type formatter struct{}

func (f *formatter) Format(entry *log.Entry) ([]byte, error) {
	b := &bytes.Buffer{}
	b.WriteString(entry.Time.Format("2006/01/02 15:04:05.000 "))
	b.WriteString("[" + strings.ToUpper(entry.Level.String()) + "] ")
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Init configures logrus's level and output format. levelName accepts the
// usual logrus level names ("debug", "info", "warn", "error"); an
// unrecognized name falls back to "warn".
func Init(levelName string) {
	level, err := log.ParseLevel(levelName)
	if err != nil {
		level = log.WarnLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&formatter{})
}

func writeMessage(f *os.File, level int, message string, args ...interface{}) {
	if Verbosity >= level {
		fmt.Fprintf(f, message, args...)
	}
}

// StatusMessage prints a verbosity-gated message to stdout.
func StatusMessage(level int, message string, args ...interface{}) {
	writeMessage(os.Stdout, level, message, args...)
}

// ErrorMessage prints a verbosity-gated message to stderr.
func ErrorMessage(level int, message string, args ...interface{}) {
	writeMessage(os.Stderr, level, message, args...)
}
