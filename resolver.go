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
	"context"
	"fmt"
	"reflect"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers/reporter"
)

// Resolver resolves the marker closures of many root elements at once,
// resolving independent roots in parallel.
//
// A minimal Resolver, that reads markers from descriptor options and uses the
// standard repeatability rule, can be had with the following snippet:
//
//	resolver := protomarkers.Resolver[*protomarkers.GenericMapping]{
//	    Collector: protomarkers.StandardRepeatable(),
//	    Source:    protomarkers.OptionsSource{},
//	    Factory:   protomarkers.GenericFactory{},
//	}
type Resolver[M Mapping] struct {
	// Decides which marker types are containers of repeatable marker types.
	// Required.
	Collector Collector
	// Enumerates the markers present on elements and marker types. Required.
	Source Source
	// Creates the mappings of each closure. Required, and must be comparable.
	Factory Factory[M]

	// The maximum parallelism to use when resolving. If unspecified or set to
	// a non-positive value, then min(runtime.NumCPU(), runtime.GOMAXPROCS(-1))
	// will be used.
	MaxParallelism int
	// A custom error and warning reporter. If unspecified a default reporter
	// is used. A default reporter fails resolution at the first invalid root
	// and ignores all warnings.
	Reporter reporter.Reporter
	// If set, traversal steps are traced at debug level.
	Logger *zap.Logger
	// Patterns of marker types to leave out of every closure. See
	// [WithExclude] for the syntax.
	Exclude []string
}

// Resolve resolves the closure of each of the given roots. The returned slice
// is parallel to roots; when the same root appears more than once, its
// entries share one *Element.
//
// Invalid roots are reported to the Reporter. If the reporter lets resolution
// continue, their entries are nil and ErrResolutionFailed from the reporter
// package is returned along with the other results.
func (r *Resolver[M]) Resolve(ctx context.Context, roots ...protoreflect.Descriptor) ([]*Element[M], error) {
	if len(roots) == 0 {
		return nil, nil
	}
	switch {
	case r.Collector == nil:
		return nil, fmt.Errorf("%w: resolver has no collector", ErrInvalidArgument)
	case r.Source == nil:
		return nil, fmt.Errorf("%w: resolver has no source", ErrInvalidArgument)
	case r.Factory == nil:
		return nil, fmt.Errorf("%w: resolver has no mapping factory", ErrInvalidArgument)
	}

	par := r.MaxParallelism
	if par <= 0 {
		par = min(runtime.GOMAXPROCS(-1), runtime.NumCPU())
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := reporter.NewHandler(r.Reporter)
	opts := []Option{WithLogger(logger), withHandler(h), WithExclude(r.Exclude...)}
	// Check the options once, so that bad patterns fail fast instead of once
	// per root.
	if _, err := newConfig(opts); err != nil {
		return nil, err
	}

	// owner[i] is the index of the first occurrence of roots[i], or -1 if
	// roots[i] is invalid.
	owner := make([]int, len(roots))
	first := make(map[protoreflect.Descriptor]int, len(roots))
	for i, root := range roots {
		owner[i] = -1
		if root == nil || !reflect.TypeOf(root).Comparable() {
			err := h.HandleError(reporter.Errorf(root, "root %d: %w", i, ErrInvalidArgument))
			if err != nil {
				return nil, err
			}
			continue
		}
		if j, ok := first[root]; ok {
			owner[i] = j
			continue
		}
		first[root] = i
		owner[i] = i
	}

	sem := semaphore.NewWeighted(int64(par))
	group, ctx := errgroup.WithContext(ctx)
	results := make([]*Element[M], len(roots))
	for i, root := range roots {
		if owner[i] != i {
			continue
		}
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			elem, err := New(r.Collector, r.Source, root, r.Factory, opts...)
			if err != nil {
				return h.HandleError(reporter.Error(root, err))
			}
			logger.Debug("resolved root",
				zap.String("root", reporter.ElementName(root)),
				zap.Int("mappings", elem.Len()))
			results[i] = elem
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	for i, j := range owner {
		if j >= 0 && j != i {
			results[i] = results[j]
		}
	}
	return results, h.Error()
}
