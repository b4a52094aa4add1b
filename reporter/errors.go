// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reporter

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ErrResolutionFailed is returned when errors were reported during resolution
// but the reporter chose to continue, so there is no single error to return.
var ErrResolutionFailed = errors.New("resolution failed: invalid elements")

// ErrorWithElement is an error about a particular element or marker type
// declaration.
//
// The value of Error() will contain both the element's name and the
// underlying error. The value of Unwrap() will only be the underlying error.
type ErrorWithElement interface {
	error
	GetElement() protoreflect.Descriptor
	Unwrap() error
}

// Error creates a new ErrorWithElement. The element may be nil when the
// error is about a missing element.
func Error(elem protoreflect.Descriptor, err error) ErrorWithElement {
	return errorWithElement{elem: elem, underlying: err}
}

// Errorf creates a new ErrorWithElement whose underlying error is created
// using the given message format and arguments (via fmt.Errorf).
func Errorf(elem protoreflect.Descriptor, format string, args ...any) ErrorWithElement {
	return errorWithElement{elem: elem, underlying: fmt.Errorf(format, args...)}
}

type errorWithElement struct {
	underlying error
	elem       protoreflect.Descriptor
}

func (e errorWithElement) Error() string {
	return fmt.Sprintf("%s: %v", ElementName(e.elem), e.underlying)
}

// GetElement implements the ErrorWithElement interface.
func (e errorWithElement) GetElement() protoreflect.Descriptor {
	return e.elem
}

// Unwrap implements the ErrorWithElement interface, supplying the underlying
// error. This error will not include the element's name.
func (e errorWithElement) Unwrap() error {
	return e.underlying
}

var _ ErrorWithElement = errorWithElement{}

// ElementName returns a printable name for an element: its full name, or its
// path for files, which have no name of their own other than the package.
func ElementName(elem protoreflect.Descriptor) string {
	switch elem := elem.(type) {
	case nil:
		return "<nil>"
	case protoreflect.FileDescriptor:
		return elem.Path()
	default:
		return string(elem.FullName())
	}
}
