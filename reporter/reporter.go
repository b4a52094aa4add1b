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

// Package reporter contains the types used for reporting errors and warnings
// while resolving marker closures.
package reporter

import (
	"errors"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ErrorReporter is responsible for reporting the given error. If the reporter
// returns a non-nil error, resolution will abort with that error. If the
// reporter returns nil, resolution will continue with the remaining elements.
type ErrorReporter func(err ErrorWithElement) error

// WarningReporter is responsible for reporting the given warning. This is used
// for things that do not cause resolution to fail but degrade the result, such
// as a container marker whose contained markers could not be read.
type WarningReporter func(ErrorWithElement)

// Reporter handles errors and warnings.
type Reporter interface {
	Error(ErrorWithElement) error
	Warning(ErrorWithElement)
}

// NewReporter creates a new reporter that invokes the given functions on
// error or warning. Either may be nil.
func NewReporter(errs ErrorReporter, warnings WarningReporter) Reporter {
	return reporterFuncs{errs: errs, warnings: warnings}
}

type reporterFuncs struct {
	errs     ErrorReporter
	warnings WarningReporter
}

func (r reporterFuncs) Error(err ErrorWithElement) error {
	if r.errs == nil {
		return err
	}
	return r.errs(err)
}

func (r reporterFuncs) Warning(err ErrorWithElement) {
	if r.warnings != nil {
		r.warnings(err)
	}
}

// Handler is used by resolvers to report errors and warnings. It is safe for
// concurrent use and remembers the first error that aborted resolution.
type Handler struct {
	reporter Reporter

	mu           sync.Mutex
	errsReported bool
	err          error
}

// NewHandler creates a new Handler that reports to rep. If rep is nil, errors
// abort resolution and warnings are ignored.
func NewHandler(rep Reporter) *Handler {
	if rep == nil {
		rep = NewReporter(nil, nil)
	}
	return &Handler{reporter: rep}
}

// HandleErrorf reports an error about the given element.
func (h *Handler) HandleErrorf(elem protoreflect.Descriptor, format string, args ...any) error {
	return h.HandleError(Errorf(elem, format, args...))
}

// HandleError reports an error. Errors that are not an ErrorWithElement skip
// the reporter and abort resolution directly.
func (h *Handler) HandleError(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return h.err
	}
	var ewe ErrorWithElement
	if errors.As(err, &ewe) {
		h.errsReported = true
		err = h.reporter.Error(ewe)
	}
	h.err = err
	return err
}

// HandleWarning reports a warning about the given element.
func (h *Handler) HandleWarning(elem protoreflect.Descriptor, err error) {
	// no need for lock; warnings don't interact with mutable fields
	h.reporter.Warning(Error(elem, err))
}

// Error returns the error that aborted resolution, or ErrResolutionFailed if
// errors were reported but the reporter let resolution continue.
func (h *Handler) Error() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.errsReported && h.err == nil {
		return ErrResolutionFailed
	}
	return h.err
}

// ReporterError returns the error returned by the reporter, if any. Unlike
// Error, it is nil when the reporter swallowed every error.
func (h *Handler) ReporterError() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.err
}
