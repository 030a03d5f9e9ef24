// Copyright 2025 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hwerr contains the failure classes reported by the device, memory
// and engine layers, exported as *errors.Error pointers so callers can test
// them with errors.Is.
//
// Errors returned by the lower layers wrap both a class from this package and
// the kernel's errno, so errors.Is(err, hwerr.MapFailed) and
// errors.Is(err, unix.ENOMEM) can both hold for the same error.
package hwerr

import (
	stderrors "errors"
	"fmt"

	"gvisor.dev/tegravid/pkg/errors"
)

// Failure classes.
const (
	CodeAllocationFailed errors.Code = iota + 1
	CodeImportFailed
	CodeMapFailed
	CodeChannelMapFailed
	CodeExportFailed
	CodeChannelOpenFailed
	CodeSyncpointAllocFailed
	CodeSubmitFailed
	CodeWaitTimeout
	CodeWaitFailed
	CodeUnsupportedPlatform
	CodeUnsupportedCodec
	CodeUnsupportedFormat
	CodeSlotTableFull
	CodeInternalNullBuffer
	CodeOperationFailed
)

// Memory object failures.
var (
	AllocationFailed = errors.New(CodeAllocationFailed, "buffer allocation failed")
	ImportFailed     = errors.New(CodeImportFailed, "buffer import by name failed")
	MapFailed        = errors.New(CodeMapFailed, "buffer CPU mapping failed")
	ChannelMapFailed = errors.New(CodeChannelMapFailed, "buffer channel mapping failed")
	ExportFailed     = errors.New(CodeExportFailed, "buffer export failed")
)

// Device handle failures.
var (
	ChannelOpenFailed    = errors.New(CodeChannelOpenFailed, "channel open failed")
	SyncpointAllocFailed = errors.New(CodeSyncpointAllocFailed, "syncpoint allocation failed")
	SubmitFailed         = errors.New(CodeSubmitFailed, "job submission failed")
	WaitTimeout          = errors.New(CodeWaitTimeout, "syncpoint wait timed out")
	WaitFailed           = errors.New(CodeWaitFailed, "syncpoint wait failed")
	UnsupportedPlatform  = errors.New(CodeUnsupportedPlatform, "unsupported platform")
)

// Engine failures.
var (
	UnsupportedCodec   = errors.New(CodeUnsupportedCodec, "unsupported codec")
	UnsupportedFormat  = errors.New(CodeUnsupportedFormat, "unsupported surface format")
	SlotTableFull      = errors.New(CodeSlotTableFull, "reference slot table full")
	InternalNullBuffer = errors.New(CodeInternalNullBuffer, "required buffer missing")
	OperationFailed    = errors.New(CodeOperationFailed, "engine operation failed")
)

// Wrap returns an error that matches both class and cause under errors.Is.
// A nil cause yields class itself.
func Wrap(class *errors.Error, cause error) error {
	if cause == nil {
		return class
	}
	return fmt.Errorf("%w: %w", class, cause)
}

// Wrapf is like Wrap, with a formatted context message in front of cause.
func Wrapf(class *errors.Error, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", class, msg)
	}
	return fmt.Errorf("%w: %s: %w", class, msg, cause)
}

// CodeOf returns the most specific failure class of err, or zero if err
// carries none. OperationFailed is reported only when nothing more precise is
// wrapped beneath it.
func CodeOf(err error) errors.Code {
	for _, class := range all {
		if stderrors.Is(err, class) {
			return class.Code()
		}
	}
	return 0
}

var all = []*errors.Error{
	AllocationFailed,
	ImportFailed,
	MapFailed,
	ChannelMapFailed,
	ExportFailed,
	ChannelOpenFailed,
	SyncpointAllocFailed,
	SubmitFailed,
	WaitTimeout,
	WaitFailed,
	UnsupportedPlatform,
	UnsupportedCodec,
	UnsupportedFormat,
	SlotTableFull,
	InternalNullBuffer,
	OperationFailed,
}
