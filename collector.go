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
	"errors"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers/markerpb"
)

// ErrNotContainer is returned by [Container.Extract] when a marker does not
// have the shape of the container it was expected to be.
var ErrNotContainer = errors.New("marker is not a container")

// Container describes a container marker type: a marker type whose instances
// bundle several instances of a repeatable marker type.
type Container struct {
	// Element is the repeatable marker type grouped by the container.
	Element protoreflect.MessageDescriptor
	// Extract returns the markers held by a container instance, in order.
	// A failure here is not fatal: the container is treated as holding no
	// markers.
	Extract func(container proto.Message) ([]proto.Message, error)
}

// Collector decides which marker types are containers of repeatable marker
// types. Every repeatable type has exactly one container type.
type Collector interface {
	// Container reports whether decl is a container type, and how to expand
	// its instances. src provides the meta-markers of the types involved.
	Container(src Source, decl protoreflect.MessageDescriptor) (Container, bool)
}

// NoRepeatable returns a collector that treats every marker type as a
// non-repeatable leaf.
func NoRepeatable() Collector {
	return noRepeatable{}
}

// StandardRepeatable returns the collector that implements the usual
// repeatability rule.
//
// A type C is the container of a type R when C has a repeated field of type R
// that is either named "value" or is C's only field, and either R carries a
// buf.markers.v1.Repeatable marker naming C, or C carries a
// buf.markers.v1.RepeatableContainer marker naming R.
func StandardRepeatable() Collector {
	return standardRepeatable{}
}

// ConditionalRepeatable returns a collector that recognizes containers by
// shape, like [StandardRepeatable], but decides repeatability with the given
// predicate instead of markers. This makes it possible to define containers
// by naming convention.
func ConditionalRepeatable(predicate func(container, element protoreflect.MessageDescriptor) bool) Collector {
	return conditionalRepeatable{predicate: predicate}
}

// CombinedRepeatable returns a collector that asks each of the given
// collectors in turn and uses the first one that recognizes a container.
func CombinedRepeatable(collectors ...Collector) Collector {
	return combinedRepeatable(collectors)
}

type noRepeatable struct{}

func (noRepeatable) Container(Source, protoreflect.MessageDescriptor) (Container, bool) {
	return Container{}, false
}

type standardRepeatable struct{}

func (standardRepeatable) Container(src Source, decl protoreflect.MessageDescriptor) (Container, bool) {
	field := valueField(decl)
	if field == nil {
		return Container{}, false
	}
	element := field.Message()
	for _, meta := range src.MetaMarkers(element) {
		if name, ok := markerpb.ContainerOf(meta); ok && name == decl.FullName() {
			return FieldContainer(field), true
		}
	}
	for _, meta := range src.MetaMarkers(decl) {
		if name, ok := markerpb.ElementOf(meta); ok && name == element.FullName() {
			return FieldContainer(field), true
		}
	}
	return Container{}, false
}

type conditionalRepeatable struct {
	predicate func(container, element protoreflect.MessageDescriptor) bool
}

func (c conditionalRepeatable) Container(_ Source, decl protoreflect.MessageDescriptor) (Container, bool) {
	field := valueField(decl)
	if field == nil || c.predicate == nil || !c.predicate(decl, field.Message()) {
		return Container{}, false
	}
	return FieldContainer(field), true
}

type combinedRepeatable []Collector

func (c combinedRepeatable) Container(src Source, decl protoreflect.MessageDescriptor) (Container, bool) {
	for _, collector := range c {
		if container, ok := collector.Container(src, decl); ok {
			return container, true
		}
	}
	return Container{}, false
}

// FieldContainer returns a container whose instances hold their markers in
// the given repeated message field.
//
// The field is looked up by number in each instance, so instances built
// against another copy of the container's descriptor are expanded too.
func FieldContainer(field protoreflect.FieldDescriptor) Container {
	return Container{
		Element: field.Message(),
		Extract: func(container proto.Message) ([]proto.Message, error) {
			if container == nil {
				return nil, ErrNotContainer
			}
			msg := container.ProtoReflect()
			fd := msg.Descriptor().Fields().ByNumber(field.Number())
			if fd == nil || !fd.IsList() || fd.Message() == nil {
				return nil, fmt.Errorf("%w: %s has no repeated message field %d",
					ErrNotContainer, msg.Descriptor().FullName(), field.Number())
			}
			list := msg.Get(fd).List()
			markers := make([]proto.Message, 0, list.Len())
			for i := range list.Len() {
				markers = append(markers, list.Get(i).Message().Interface())
			}
			return markers, nil
		},
	}
}

// valueField returns the field of decl that holds repeated markers: the field
// named "value", or decl's only field.
func valueField(decl protoreflect.MessageDescriptor) protoreflect.FieldDescriptor {
	if decl == nil {
		return nil
	}
	fields := decl.Fields()
	field := fields.ByName("value")
	if field == nil && fields.Len() == 1 {
		field = fields.Get(0)
	}
	if field == nil || field.Cardinality() != protoreflect.Repeated || field.IsMap() || field.Message() == nil {
		return nil
	}
	return field
}
