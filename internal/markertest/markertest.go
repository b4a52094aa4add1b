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

// Package markertest builds marker types, elements, and a static marker table
// from a compact description, for use in tests.
package markertest

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"gopkg.in/yaml.v3"

	"github.com/bufbuild/protomarkers"
	"github.com/bufbuild/protomarkers/markerpb"
)

// Package is the proto package of every type a Case declares.
const Package = "test"

// Case describes marker types and the elements they are attached to.
type Case struct {
	Types    []Type              `yaml:"types"`
	Elements map[string][]Marker `yaml:"elements"`
}

// Type describes a marker type declaration.
type Type struct {
	Name string `yaml:"name"`
	// If set, the type has a field "value" holding repeated markers of the
	// named type.
	Repeats string `yaml:"repeats"`
	// String attributes of the type.
	Attrs []string `yaml:"attrs"`
	// If set, the type carries a Repeatable marker naming this container.
	Repeatable string `yaml:"repeatable"`
	// If set, the type carries a RepeatableContainer marker naming this
	// element type.
	ContainerOf string `yaml:"container_of"`
	// Meta-markers present on the declaration.
	Meta []Marker `yaml:"meta"`
}

// Marker describes a marker value.
type Marker struct {
	Type  string            `yaml:"type"`
	Attrs map[string]string `yaml:"attrs"`
	Value []Marker          `yaml:"value"`
}

// Fixture is a built Case.
type Fixture struct {
	File  protoreflect.FileDescriptor
	Table protomarkers.Table
}

// Parse parses a Case from YAML.
func Parse(text string) (*Case, error) {
	var c Case
	if err := yaml.Unmarshal([]byte(text), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Element returns the descriptor of the named element.
func (f *Fixture) Element(name string) protoreflect.MessageDescriptor {
	return f.File.Messages().ByName(protoreflect.Name(name))
}

// Type returns the descriptor of the named marker type.
func (f *Fixture) Type(name string) protoreflect.MessageDescriptor {
	return f.File.Messages().ByName(protoreflect.Name(name))
}

// ElementNames returns the names of the elements of the fixture, sorted.
func (c *Case) ElementNames() []string {
	return slices.Sorted(maps.Keys(c.Elements))
}

// Build builds the descriptors and the marker table described by c.
func (c *Case) Build() (*Fixture, error) {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(Package + ".proto"),
		Package: proto.String(Package),
		Syntax:  proto.String("proto3"),
	}
	for _, typ := range c.Types {
		msg := &descriptorpb.DescriptorProto{Name: proto.String(typ.Name)}
		if typ.Repeats != "" {
			msg.Field = append(msg.Field, &descriptorpb.FieldDescriptorProto{
				Name:     proto.String("value"),
				Number:   proto.Int32(1),
				Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
				Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
				TypeName: proto.String(qualify(typ.Repeats)),
			})
		}
		for i, attr := range typ.Attrs {
			msg.Field = append(msg.Field, &descriptorpb.FieldDescriptorProto{
				Name:   proto.String(attr),
				Number: proto.Int32(int32(i + 2)),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			})
		}
		fdp.MessageType = append(fdp.MessageType, msg)
	}
	for _, name := range c.ElementNames() {
		fdp.MessageType = append(fdp.MessageType, &descriptorpb.DescriptorProto{Name: proto.String(name)})
	}

	file, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		return nil, err
	}
	f := &Fixture{
		File: file,
		Table: protomarkers.Table{
			Elements: make(map[string][]proto.Message),
			Types:    make(map[protoreflect.FullName][]proto.Message),
		},
	}

	for _, typ := range c.Types {
		var meta []proto.Message
		if typ.Repeatable != "" {
			meta = append(meta, markerpb.NewRepeatable(protoreflect.FullName(Package+"."+typ.Repeatable)))
		}
		if typ.ContainerOf != "" {
			meta = append(meta, markerpb.NewRepeatableContainer(protoreflect.FullName(Package+"."+typ.ContainerOf)))
		}
		markers, err := f.NewMarkers(typ.Meta)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", typ.Name, err)
		}
		f.Table.Types[protoreflect.FullName(Package+"."+typ.Name)] = append(meta, markers...)
	}
	for name, descs := range c.Elements {
		markers, err := f.NewMarkers(descs)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", name, err)
		}
		f.Table.Elements[Package+"."+name] = markers
	}
	return f, nil
}

// NewMarkers creates marker values from their descriptions.
func (f *Fixture) NewMarkers(descs []Marker) ([]proto.Message, error) {
	markers := make([]proto.Message, 0, len(descs))
	for _, desc := range descs {
		m, err := f.NewMarker(desc)
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	return markers, nil
}

// NewMarker creates a marker value from its description.
func (f *Fixture) NewMarker(desc Marker) (*dynamicpb.Message, error) {
	md := f.Type(desc.Type)
	if md == nil {
		return nil, fmt.Errorf("unknown marker type %q", desc.Type)
	}
	msg := dynamicpb.NewMessage(md)
	for _, name := range slices.Sorted(maps.Keys(desc.Attrs)) {
		fd := md.Fields().ByName(protoreflect.Name(name))
		if fd == nil || fd.Kind() != protoreflect.StringKind {
			return nil, fmt.Errorf("marker type %q has no attribute %q", desc.Type, name)
		}
		msg.Set(fd, protoreflect.ValueOfString(desc.Attrs[name]))
	}
	if len(desc.Value) > 0 {
		fd := md.Fields().ByName("value")
		if fd == nil {
			return nil, fmt.Errorf("marker type %q is not a container", desc.Type)
		}
		list := msg.Mutable(fd).List()
		for _, child := range desc.Value {
			m, err := f.NewMarker(child)
			if err != nil {
				return nil, err
			}
			list.Append(protoreflect.ValueOfMessage(m))
		}
	}
	return msg, nil
}

// Describe renders a marker for golden output: its type followed by its
// non-empty attributes.
func Describe(m proto.Message) string {
	msg := m.ProtoReflect()
	var b strings.Builder
	b.WriteString(string(msg.Descriptor().FullName()))
	var attrs []string
	fields := msg.Descriptor().Fields()
	for i := range fields.Len() {
		fd := fields.Get(i)
		if fd.Kind() != protoreflect.StringKind || fd.IsList() || !msg.Has(fd) {
			continue
		}
		attrs = append(attrs, fmt.Sprintf("%s=%s", fd.Name(), msg.Get(fd).String()))
	}
	if len(attrs) > 0 {
		fmt.Fprintf(&b, " {%s}", strings.Join(attrs, " "))
	}
	return b.String()
}

// Dump renders the closure of an element for golden output, one mapping per
// line, with the index of each mapping's source.
func Dump[M protomarkers.Mapping](elem *protomarkers.Element[M]) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", elem.Root().FullName())
	index := make(map[protomarkers.Mapping]int)
	var i int
	for m := range elem.All() {
		index[m] = i
		fmt.Fprintf(&b, "  [%d] %s", i, Describe(m.Marker()))
		if src := m.Source(); src != nil {
			fmt.Fprintf(&b, " <- [%d]", index[src])
		}
		b.WriteString("\n")
		i++
	}
	return b.String()
}

func qualify(name string) string {
	return "." + Package + "." + name
}
