// Copyright 2025 Poiesic Systems
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

package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes
var (
	// ErrMalformedInput indicates a structurally invalid input row.
	ErrMalformedInput = errors.New("malformed input")

	// ErrSchema indicates a record could not be translated into an operation.
	ErrSchema = errors.New("schema error")

	// ErrTransientEndpoint indicates a network, timeout or server-busy failure.
	ErrTransientEndpoint = errors.New("transient endpoint error")

	// ErrPermanentDocument indicates the endpoint rejected a document as invalid.
	ErrPermanentDocument = errors.New("permanent document error")

	// ErrFatalConfiguration indicates no submission can ever succeed.
	ErrFatalConfiguration = errors.New("fatal configuration error")

	// ErrInvalidSummary indicates a run summary violates the accounting invariant.
	ErrInvalidSummary = errors.New("invalid run summary")
)

// MalformedInputError describes an input row whose shape does not match the header.
type MalformedInputError struct {
	Line int
	Want int
	Got  int
	Err  error
}

func (e *MalformedInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed input at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed input at line %d: expected %d fields, got %d", e.Line, e.Want, e.Got)
}

func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

func (e *MalformedInputError) Unwrap() error { return e.Err }

// SchemaError describes a record missing its declared identifier field.
type SchemaError struct {
	Line  int
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at line %d: identifier field %q missing or empty", e.Line, e.Field)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// TransientEndpointError is a batch-level failure that may succeed on retry.
type TransientEndpointError struct {
	Status int // 0 when no response was received
	Err    error
}

func (e *TransientEndpointError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient endpoint error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient endpoint error: %v", e.Err)
}

func (e *TransientEndpointError) Is(target error) bool { return target == ErrTransientEndpoint }

func (e *TransientEndpointError) Unwrap() error { return e.Err }

// PermanentDocumentError is a per-document rejection.
type PermanentDocumentError struct {
	Status int
	Reason string
}

func (e *PermanentDocumentError) Error() string {
	return fmt.Sprintf("document rejected (status %d): %s", e.Status, e.Reason)
}

func (e *PermanentDocumentError) Is(target error) bool { return target == ErrPermanentDocument }

// FatalConfigurationError aborts the whole run.
type FatalConfigurationError struct {
	Reason string
	Err    error
}

func (e *FatalConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("fatal configuration error: ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FatalConfigurationError) Is(target error) bool { return target == ErrFatalConfiguration }

func (e *FatalConfigurationError) Unwrap() error { return e.Err }
