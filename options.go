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

package protomarkers

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers/markerpb"
	"github.com/bufbuild/protomarkers/reporter"
)

// Option configures how [New] resolves a closure.
type Option func(*config)

// WithLogger traces the traversal at debug level to the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReporter sends warnings about degraded expansion, such as containers
// whose markers cannot be read, to the given reporter.
func WithReporter(rep reporter.Reporter) Option {
	return func(c *config) {
		c.handler = reporter.NewHandler(rep)
	}
}

// WithExclude leaves markers whose type matches any of the given patterns out
// of the closure. Patterns use doublestar glob syntax over the marker type's
// full name with "." treated as a path separator, so "acme.internal.**"
// excludes every type in package acme.internal and below.
//
// Types in the buf.markers.v1 package are always excluded.
func WithExclude(patterns ...string) Option {
	return func(c *config) {
		c.exclude = append(c.exclude, patterns...)
	}
}

func withHandler(h *reporter.Handler) Option {
	return func(c *config) {
		c.handler = h
	}
}

type config struct {
	logger  *zap.Logger
	handler *reporter.Handler
	exclude []string
}

func newConfig(opts []Option) (*config, error) {
	c := &config{}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.handler == nil {
		c.handler = reporter.NewHandler(nil)
	}
	for i, pattern := range c.exclude {
		pattern = toPath(pattern)
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid exclude pattern %q", ErrInvalidArgument, c.exclude[i])
		}
		c.exclude[i] = pattern
	}
	return c, nil
}

// excluded reports whether markers of the named type stay out of closures.
func (c *config) excluded(name protoreflect.FullName) bool {
	if markerpb.IsWellKnown(name) {
		return true
	}
	if len(c.exclude) == 0 {
		return false
	}
	path := toPath(string(name))
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, path); ok {
			return true
		}
	}
	return false
}

func toPath(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
