// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package errors

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
)

// The package-level sentinels. Wrap one of these with fmt.Errorf("...: %w", ErrXxx)
// at the call site instead of introducing a new error type; callers test with Is.
var (
	ErrExist         = stderrors.New("already exists")
	ErrNotExist      = stderrors.New("does not exist")
	ErrInvalid       = stderrors.New("invalid argument")
	ErrNotAuthorized = stderrors.New("not authorized")
	ErrInternal      = stderrors.New("internal error")
	ErrDataLoss      = stderrors.New("data loss")
	ErrExhausted     = stderrors.New("resource exhausted")
	ErrUnimplemented = stderrors.New("not implemented")
	ErrConflict      = stderrors.New("conflict")
	ErrCanceled      = stderrors.New("canceled")
	ErrCommunication = stderrors.New("communication error")
	ErrClosed        = stderrors.New("closed")
)

// Is is a thin wrapper over errors.Is kept so callers only need to import this
// package when working with the sentinels above.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

const jsonErrorMarker = "\x00obj:"

// EmbedObject packs a small integer payload into an error built on top of
// cause, so the caller can attach e.g. a block id to ErrExhausted without a
// bespoke error type. cause must already be one of (or wrap) the sentinels
// above, and cause must not itself be an error produced by EmbedObject -
// embeddings do not nest, and EmbedObject panics if they would.
func EmbedObject(payload int, cause error) error {
	if cause == nil {
		panic("EmbedObject: cause must not be nil")
	}
	if strings.Contains(cause.Error(), jsonErrorMarker) {
		panic("EmbedObject: cause already carries an embedded object")
	}
	return fmt.Errorf("%s%d%s: %w", jsonErrorMarker, payload, jsonErrorMarker, cause)
}

// ExtractObject reports whether err carries a payload embedded by EmbedObject,
// and if so, decodes it into *out.
func ExtractObject(err error, out *int) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	start := strings.Index(msg, jsonErrorMarker)
	if start < 0 {
		return false
	}
	rest := msg[start+len(jsonErrorMarker):]
	end := strings.Index(rest, jsonErrorMarker)
	if end < 0 {
		return false
	}
	v, err2 := strconv.Atoi(rest[:end])
	if err2 != nil {
		return false
	}
	*out = v
	return true
}
