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

package protomarkers_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers"
	"github.com/bufbuild/protomarkers/internal/markertest"
	"github.com/bufbuild/protomarkers/reporter"
)

func newResolver(f *markertest.Fixture) *protomarkers.Resolver[*protomarkers.GenericMapping] {
	return &protomarkers.Resolver[*protomarkers.GenericMapping]{
		Collector: protomarkers.StandardRepeatable(),
		Source:    f.Table,
		Factory:   protomarkers.GenericFactory{},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)
	r := newResolver(f)

	foo, empty := f.Element("Foo"), f.Element("Empty")
	results, err := r.Resolve(context.Background(), foo, empty, foo)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 14, results[0].Len())
	assert.Equal(t, 0, results[1].Len())
	assert.Same(t, results[0], results[2])
	assert.Equal(t, foo, results[0].Root())
	assert.Equal(t, empty, results[1].Root())

	// Each resolved element equals one resolved on its own.
	elem := resolve(t, f, "Foo")
	assert.True(t, elem.Equal(results[0]))
	assert.Equal(t, markertest.Dump(elem), markertest.Dump(results[0]))

	results, err = r.Resolve(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, results)
}

func TestResolveParallelism(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)
	roots := make([]protoreflect.Descriptor, 0, 2*f.File.Messages().Len())
	for range 2 {
		for i := range f.File.Messages().Len() {
			roots = append(roots, f.File.Messages().Get(i))
		}
	}

	for _, par := range []int{1, 2, 16} {
		r := newResolver(f)
		r.MaxParallelism = par
		results, err := r.Resolve(context.Background(), roots...)
		require.NoError(t, err)
		require.Len(t, results, len(roots))
		half := len(roots) / 2
		for i, elem := range results {
			require.NotNil(t, elem, "root %d", i)
			assert.Equal(t, roots[i], elem.Root())
			if i >= half {
				assert.Same(t, results[i-half], elem)
			}
		}
	}
}

func TestResolveInvalid(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)
	foo := f.Element("Foo")

	for _, r := range []*protomarkers.Resolver[*protomarkers.GenericMapping]{
		{Source: f.Table, Factory: protomarkers.GenericFactory{}},
		{Collector: protomarkers.NoRepeatable(), Factory: protomarkers.GenericFactory{}},
		{Collector: protomarkers.NoRepeatable(), Source: f.Table},
		{Collector: protomarkers.NoRepeatable(), Source: f.Table, Factory: protomarkers.GenericFactory{}, Exclude: []string{"[a"}},
	} {
		_, err := r.Resolve(context.Background(), foo)
		assert.True(t, errors.Is(err, protomarkers.ErrInvalidArgument), "%v", err)
	}

	// The default reporter fails at the first invalid root.
	_, err := newResolver(f).Resolve(context.Background(), foo, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, protomarkers.ErrInvalidArgument), "%v", err)
	var ewe reporter.ErrorWithElement
	require.True(t, errors.As(err, &ewe))
	assert.Nil(t, ewe.GetElement())
	assert.Equal(t, "<nil>: root 1: invalid argument", err.Error())
}

func TestResolveLenient(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	var reported []reporter.ErrorWithElement
	r := newResolver(f)
	r.Reporter = reporter.NewReporter(func(err reporter.ErrorWithElement) error {
		reported = append(reported, err)
		return nil
	}, nil)

	results, err := r.Resolve(context.Background(), f.Element("Foo"), nil, f.Element("Empty"))
	assert.ErrorIs(t, err, reporter.ErrResolutionFailed)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0])
	assert.Nil(t, results[1])
	assert.NotNil(t, results[2])
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], protomarkers.ErrInvalidArgument)
}

func TestResolveCanceled(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := newResolver(f).Resolve(ctx, f.Element("Foo"), f.Element("Empty"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, results)
}

func TestResolveWarnings(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	var (
		mu       sync.Mutex
		warnings []reporter.ErrorWithElement
	)
	r := newResolver(f)
	r.Collector = brokenCollector{}
	r.Reporter = reporter.NewReporter(nil, func(err reporter.ErrorWithElement) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, err)
	})

	results, err := r.Resolve(context.Background(), f.Element("Foo"), f.Element("A"))
	require.NoError(t, err)
	assert.Equal(t, 2, results[0].Len())
	assert.Equal(t, 0, results[1].Len())
	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], errUnreadable)
}

func TestResolveLogging(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	core, logs := observer.New(zapcore.DebugLevel)
	r := newResolver(f)
	r.Logger = zap.New(core)
	r.Exclude = []string{"test.C"}

	_, err := r.Resolve(context.Background(), f.Element("Foo"), f.Element("Foo"))
	require.NoError(t, err)

	resolved := logs.FilterMessage("resolved root").All()
	require.Len(t, resolved, 1)
	assert.Equal(t, "test.Foo", resolved[0].ContextMap()["root"])
	assert.Equal(t, int64(6), resolved[0].ContextMap()["mappings"])

	// A, two Bs, and a D for each of them.
	assert.Equal(t, 6, logs.FilterMessage("discovered marker").Len())

	closures := logs.FilterMessage("resolved marker closure").All()
	require.Len(t, closures, 1)
	assert.Equal(t, int64(1), closures[0].ContextMap()["declared"])
	assert.Equal(t, int64(3), closures[0].ContextMap()["types"])

	// Nothing is logged above debug level.
	assert.Zero(t, logs.Filter(func(e observer.LoggedEntry) bool {
		return e.Level > zapcore.DebugLevel
	}).Len())
}

func TestCycleSkipLogging(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.MutualCycle)

	core, logs := observer.New(zapcore.DebugLevel)
	elem := resolve(t, f, "Mutual", protomarkers.WithLogger(zap.New(core)))
	assert.Equal(t, 2, elem.Len())

	skipped := logs.FilterMessage("skipping marker already on its provenance chain").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "test.X", skipped[0].ContextMap()["type"])
	assert.Equal(t, int64(1), skipped[0].ContextMap()["source"])

	elem = resolve(t, f, "Itself")
	assert.Equal(t, 1, elem.Len())
	assert.True(t, elem.HasDeclared("test.Self"))
}
