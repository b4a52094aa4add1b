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

package markertest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers/internal/markertest"
	"github.com/bufbuild/protomarkers/markerpb"
)

func TestBuild(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	assert.Equal(t, protoreflect.FullName("test.Foo"), f.Element("Foo").FullName())
	b := f.Type("B")
	require.NotNil(t, b)
	assert.True(t, b.Fields().ByName("value").IsList())
	assert.Equal(t, protoreflect.FullName("test.C"), b.Fields().ByName("value").Message().FullName())
	assert.Equal(t, protoreflect.FieldNumber(2), b.Fields().ByName("name").Number())

	// The Repeatable marker comes before the declared meta-markers.
	meta := f.Table.Types["test.B"]
	require.Len(t, meta, 2)
	name, ok := markerpb.ContainerOf(meta[0])
	require.True(t, ok)
	assert.Equal(t, protoreflect.FullName("test.A"), name)
	assert.Equal(t, "test.D", markertest.Describe(meta[1]))

	foo := f.Table.Elements["test.Foo"]
	require.Len(t, foo, 1)
	assert.Equal(t, "test.A", markertest.Describe(foo[0]))
	assert.Empty(t, f.Table.Elements["test.Empty"])
}

func TestNewMarker(t *testing.T) {
	t.Parallel()
	f := markertest.MustBuild(markertest.WorkedExample)

	m, err := f.NewMarker(markertest.Marker{Type: "B", Attrs: map[string]string{"name": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "test.B {name=x}", markertest.Describe(m))

	_, err = f.NewMarker(markertest.Marker{Type: "Nope"})
	assert.ErrorContains(t, err, `unknown marker type "Nope"`)
	_, err = f.NewMarker(markertest.Marker{Type: "B", Attrs: map[string]string{"color": "red"}})
	assert.ErrorContains(t, err, `has no attribute "color"`)
	_, err = f.NewMarker(markertest.Marker{Type: "D", Value: []markertest.Marker{{Type: "D"}}})
	assert.ErrorContains(t, err, "is not a container")
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	_, err := markertest.Parse("types: {")
	assert.Error(t, err)

	c, err := markertest.Parse(`
types:
  - name: A
elements:
  Foo: [{type: B}]
`)
	require.NoError(t, err)
	_, err = c.Build()
	assert.ErrorContains(t, err, "element Foo")

	c, err = markertest.Parse(`
types:
  - name: A
    repeats: Missing
`)
	require.NoError(t, err)
	_, err = c.Build()
	assert.Error(t, err)
}
