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
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/bufbuild/protomarkers"
	"github.com/bufbuild/protomarkers/internal/markertest"
	"github.com/bufbuild/protomarkers/reporter"
)

const namingCase = `
types:
  - name: Rule
    attrs: [name]
  - name: Rules
    repeats: Rule
  - name: Check
    attrs: [name]
  - name: Checks
    repeats: Check
    container_of: Check
elements:
  Field:
    - type: Rules
      value:
        - {type: Rule, attrs: {name: a}}
        - {type: Rule, attrs: {name: b}}
    - type: Checks
      value:
        - {type: Check, attrs: {name: c}}
`

// pluralNaming treats T+"s" as the container of T.
func pluralNaming(container, element protoreflect.MessageDescriptor) bool {
	return string(container.Name()) == string(element.Name())+"s"
}

func TestStandardRepeatable(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(namingCase)
	collector := protomarkers.StandardRepeatable()

	// Rules is shaped like a container but nothing says so.
	_, ok := collector.Container(f.Table, f.Type("Rules"))
	assert.False(t, ok)

	container, ok := collector.Container(f.Table, f.Type("Checks"))
	require.True(t, ok)
	assert.Equal(t, protoreflect.FullName("test.Check"), container.Element.FullName())

	_, ok = collector.Container(f.Table, f.Type("Check"))
	assert.False(t, ok)

	elem := resolve(t, f, "Field")
	assert.Len(t, elem.ByType("test.Rule"), 0)
	assert.Len(t, elem.ByType("test.Check"), 1)
	assert.Equal(t, 3, elem.Len())
}

func TestConditionalRepeatable(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(namingCase)
	collector := protomarkers.ConditionalRepeatable(pluralNaming)

	container, ok := collector.Container(f.Table, f.Type("Rules"))
	require.True(t, ok)
	assert.Equal(t, protoreflect.FullName("test.Rule"), container.Element.FullName())
	_, ok = collector.Container(f.Table, f.Type("Rule"))
	assert.False(t, ok)

	elem, err := protomarkers.New[*protomarkers.GenericMapping](collector, f.Table, f.Element("Field"), protomarkers.GenericFactory{})
	require.NoError(t, err)
	// Rules, Checks, then the Rules' two Rules and the Checks' Check.
	assert.Equal(t, 5, elem.Len())
	assert.Len(t, elem.ByType("test.Rule"), 2)

	// A nil predicate recognizes nothing.
	_, ok = protomarkers.ConditionalRepeatable(nil).Container(f.Table, f.Type("Rules"))
	assert.False(t, ok)
}

func TestCombinedRepeatable(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(namingCase)
	collector := protomarkers.CombinedRepeatable(
		protomarkers.NoRepeatable(),
		protomarkers.StandardRepeatable(),
		protomarkers.ConditionalRepeatable(func(container, element protoreflect.MessageDescriptor) bool {
			return container.Name() == "Rules"
		}),
	)

	elem, err := protomarkers.New[*protomarkers.GenericMapping](collector, f.Table, f.Element("Field"), protomarkers.GenericFactory{})
	require.NoError(t, err)
	assert.Equal(t, 5, elem.Len())
	assert.Len(t, elem.ByType("test.Rule"), 2)
	assert.Len(t, elem.ByType("test.Check"), 1)

	_, ok := protomarkers.CombinedRepeatable().Container(f.Table, f.Type("Checks"))
	assert.False(t, ok)
}

func TestNoRepeatable(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)
	elem, err := protomarkers.New[*protomarkers.GenericMapping](
		protomarkers.NoRepeatable(), f.Table, f.Element("Foo"), protomarkers.GenericFactory{})
	require.NoError(t, err)

	// A and its D; the Bs stay inside A.
	assert.Equal(t, 2, elem.Len())
	assert.True(t, elem.Has("test.A"))
	assert.True(t, elem.Has("test.D"))
	assert.False(t, elem.Has("test.B"))
}

func TestFieldContainer(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)
	field := f.Type("A").Fields().ByName("value")
	container := protomarkers.FieldContainer(field)
	assert.Equal(t, protoreflect.FullName("test.B"), container.Element.FullName())

	// An instance built against another copy of the descriptors.
	other := markertest.MustBuild(markertest.WorkedExample)
	a := other.Table.Elements["test.Foo"][0]
	markers, err := container.Extract(a)
	require.NoError(t, err)
	require.Len(t, markers, 2)
	assert.Equal(t, "b0", attr(markers[0], "name"))
	assert.Equal(t, "b1", attr(markers[1], "name"))

	_, err = container.Extract(wrapperspb.String("x"))
	assert.True(t, errors.Is(err, protomarkers.ErrNotContainer), "%v", err)
	_, err = container.Extract(nil)
	assert.True(t, errors.Is(err, protomarkers.ErrNotContainer), "%v", err)
}

var errUnreadable = errors.New("unreadable")

// brokenCollector treats A as a container whose markers cannot be read.
type brokenCollector struct{}

func (brokenCollector) Container(_ protomarkers.Source, decl protoreflect.MessageDescriptor) (protomarkers.Container, bool) {
	if decl.Name() != "A" {
		return protomarkers.Container{}, false
	}
	return protomarkers.Container{
		Element: decl.Fields().ByName("value").Message(),
		Extract: func(proto.Message) ([]proto.Message, error) {
			return nil, errUnreadable
		},
	}, true
}

func TestUnreadableContainer(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	var (
		mu       sync.Mutex
		warnings []reporter.ErrorWithElement
	)
	rep := reporter.NewReporter(nil, func(err reporter.ErrorWithElement) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, err)
	})
	elem, err := protomarkers.New[*protomarkers.GenericMapping](
		brokenCollector{}, f.Table, f.Element("Foo"), protomarkers.GenericFactory{},
		protomarkers.WithReporter(rep))
	require.NoError(t, err)

	// The container degrades to a leaf; its meta-markers are still found.
	assert.Equal(t, 2, elem.Len())
	assert.True(t, elem.Has("test.D"))

	require.Len(t, warnings, 1)
	assert.True(t, errors.Is(warnings[0], errUnreadable))
	assert.Equal(t, "test.A", reporter.ElementName(warnings[0].GetElement()))
	assert.True(t, strings.HasPrefix(warnings[0].Error(), "test.A: "), warnings[0].Error())
}
