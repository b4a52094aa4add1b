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
	"hash/maphash"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Mapping is a node in a resolved closure: a marker paired with the mapping
// whose expansion discovered it.
//
// A mapping never refers back to the closure that contains it.
type Mapping interface {
	// Marker returns the marker, unchanged.
	Marker() proto.Message
	// MarkerType returns the full name of the marker's message type.
	MarkerType() protoreflect.FullName
	// Source returns the mapping one step closer to the root element that
	// caused this one to be discovered, or nil if the marker is directly
	// present on the root element.
	Source() Mapping
	// Root reports whether the marker is directly present on the root
	// element, i.e. whether Source returns nil.
	Root() bool
	// Equal reports whether other is the same kind of mapping with an equal
	// marker and the identical source.
	Equal(other Mapping) bool
}

// Factory creates the mappings of a closure. It is invoked exactly once per
// traversal step and must not have side effects.
//
// Factories take part in the equality of [Element] values, so they must be
// comparable. Two factories are the same factory when they are ==.
type Factory[M Mapping] interface {
	// NewMapping creates the mapping for marker. source is nil for markers
	// directly present on the root element.
	NewMapping(source Mapping, marker proto.Message) M
}

// GenericMapping is a mapping that exposes its marker unchanged.
type GenericMapping struct {
	marker proto.Message
	source Mapping
}

// NewGenericMapping creates a new generic mapping.
func NewGenericMapping(source Mapping, marker proto.Message) *GenericMapping {
	return &GenericMapping{marker: marker, source: source}
}

func (m *GenericMapping) Marker() proto.Message { return m.marker }

func (m *GenericMapping) MarkerType() protoreflect.FullName { return markerType(m.marker) }

func (m *GenericMapping) Source() Mapping { return m.source }

func (m *GenericMapping) Root() bool { return m.source == nil }

func (m *GenericMapping) Equal(other Mapping) bool {
	o, ok := other.(*GenericMapping)
	switch {
	case !ok:
		return false
	case m == o:
		return true
	case m == nil || o == nil:
		return false
	}
	return m.source == o.source && proto.Equal(m.marker, o.marker)
}

// Hash returns a hash code consistent with Equal.
func (m *GenericMapping) Hash() uint64 {
	return hashMapping(genericFlavor, m.source, m.marker)
}

// ResolvedMapping is a mapping whose marker attributes may be overridden by
// the markers closer to the root element. Whether the override view is built
// is decided by ResolveAttributes; two resolved mappings are only equal if
// they agree on it.
type ResolvedMapping struct {
	marker            proto.Message
	source            Mapping
	resolveAttributes bool
}

// NewResolvedMapping creates a new resolved mapping.
func NewResolvedMapping(source Mapping, marker proto.Message, resolveAttributes bool) *ResolvedMapping {
	return &ResolvedMapping{marker: marker, source: source, resolveAttributes: resolveAttributes}
}

func (m *ResolvedMapping) Marker() proto.Message { return m.marker }

func (m *ResolvedMapping) MarkerType() protoreflect.FullName { return markerType(m.marker) }

func (m *ResolvedMapping) Source() Mapping { return m.source }

func (m *ResolvedMapping) Root() bool { return m.source == nil }

// ResolveAttributes reports whether this mapping exposes attribute overrides.
func (m *ResolvedMapping) ResolveAttributes() bool { return m.resolveAttributes }

func (m *ResolvedMapping) Equal(other Mapping) bool {
	o, ok := other.(*ResolvedMapping)
	switch {
	case !ok:
		return false
	case m == o:
		return true
	case m == nil || o == nil:
		return false
	}
	return m.source == o.source &&
		m.resolveAttributes == o.resolveAttributes &&
		proto.Equal(m.marker, o.marker)
}

// Hash returns a hash code consistent with Equal.
func (m *ResolvedMapping) Hash() uint64 {
	flavor := resolvedFlavor
	if m.resolveAttributes {
		flavor = resolvedAttributesFlavor
	}
	return hashMapping(flavor, m.source, m.marker)
}

// GenericFactory creates [GenericMapping] values.
type GenericFactory struct{}

func (GenericFactory) NewMapping(source Mapping, marker proto.Message) *GenericMapping {
	return NewGenericMapping(source, marker)
}

// ResolvedFactory creates [ResolvedMapping] values.
type ResolvedFactory struct {
	ResolveAttributes bool
}

func (f ResolvedFactory) NewMapping(source Mapping, marker proto.Message) *ResolvedMapping {
	return NewResolvedMapping(source, marker, f.ResolveAttributes)
}

// FactoryFunc adapts a function into a [Factory]. Each FactoryFunc is a
// distinct factory, even when two of them wrap the same function.
type FactoryFunc[M Mapping] struct {
	name string
	fn   func(source Mapping, marker proto.Message) M
}

// NewFactoryFunc returns a new factory backed by fn. The name is only used
// for printing.
func NewFactoryFunc[M Mapping](name string, fn func(source Mapping, marker proto.Message) M) *FactoryFunc[M] {
	return &FactoryFunc[M]{name: name, fn: fn}
}

func (f *FactoryFunc[M]) NewMapping(source Mapping, marker proto.Message) M {
	return f.fn(source, marker)
}

func (f *FactoryFunc[M]) String() string {
	return f.name
}

const (
	genericFlavor byte = iota + 1
	resolvedFlavor
	resolvedAttributesFlavor
)

var seed = maphash.MakeSeed()

func hashMapping(flavor byte, source Mapping, marker proto.Message) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteByte(flavor)
	if source != nil {
		maphash.WriteComparable(&h, source)
	}
	if marker != nil {
		h.WriteString(string(markerType(marker)))
		// Deterministic output is stable for equal messages of one type.
		data, err := proto.MarshalOptions{Deterministic: true}.Marshal(marker)
		if err == nil {
			h.Write(data)
		}
	}
	return h.Sum64()
}

func markerType(m proto.Message) protoreflect.FullName {
	if m == nil {
		return ""
	}
	return m.ProtoReflect().Descriptor().FullName()
}
