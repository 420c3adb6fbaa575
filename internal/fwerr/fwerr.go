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

// Package fwerr provides the error type shared by every package in this
// module: a plain error with a captured stack trace and an optional parent,
// so a CLI entry point can print a short message by default and the full
// trace at debug verbosity.
package fwerr

import (
	"fmt"
	"runtime"
)

// FlashError is the base error type of this module; domain wrappers such as
// container.OpError and flash.ProgramError embed it. Text is the
// user-facing message; Parent, if set, is the underlying error that caused
// this one.
type FlashError struct {
	Parent     error
	Text       string
	StackTrace []byte
}

func (fe *FlashError) Error() string {
	return fe.Text
}

func (fe *FlashError) Unwrap() error {
	return fe.Parent
}

// New builds a FlashError carrying the given message and the stack trace of
// the calling goroutine.
func New(msg string) *FlashError {
	fe := &FlashError{
		Text:       msg,
		StackTrace: make([]byte, 65536),
	}

	n := runtime.Stack(fe.StackTrace, false)
	fe.StackTrace = fe.StackTrace[:n]

	return fe
}

// Fmt builds a FlashError from a format string, the same way fmt.Errorf
// builds a plain error.
func Fmt(format string, args ...interface{}) *FlashError {
	return New(fmt.Sprintf(format, args...))
}

// Wrap adapts an arbitrary error into a FlashError, preserving it as the
// parent. If the given error is already a FlashError, its deepest parent is
// hoisted so chains of Wrap calls don't nest stack traces needlessly.
func Wrap(parent error) *FlashError {
	for {
		fe, ok := parent.(*FlashError)
		if !ok || fe == nil || fe.Parent == nil {
			break
		}
		parent = fe.Parent
	}

	fe := New(parent.Error())
	fe.Parent = parent
	return fe
}

// Wrapf adapts an arbitrary error into a FlashError with a new top-level
// message, keeping the original as the parent.
func Wrapf(parent error, format string, args ...interface{}) *FlashError {
	fe := Wrap(parent)
	fe.Text = fmt.Sprintf(format, args...)
	return fe
}
