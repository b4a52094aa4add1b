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
	"hash/maphash"
	"iter"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrInvalidArgument is returned when an element cannot be resolved because
// one of its inputs is missing or unusable.
var ErrInvalidArgument = errors.New("invalid argument")

// Element is the resolved marker closure of a root element. It mirrors a
// reflection-style query API over every marker reachable from the root:
// markers directly present on it, markers held by container markers, and the
// meta-markers of every marker type found along the way.
//
// An Element is immutable and safe for concurrent use.
type Element[M Mapping] struct {
	root    protoreflect.Descriptor
	factory Factory[M]
	closure *closure[M]
}

// New resolves the closure of root. The closure is built eagerly: by the time
// New returns, every query is a read over an immutable index.
//
// The factory must be comparable, since it takes part in [Element.Equal].
func New[M Mapping](
	collector Collector,
	src Source,
	root protoreflect.Descriptor,
	factory Factory[M],
	opts ...Option,
) (*Element[M], error) {
	switch {
	case root == nil:
		return nil, fmt.Errorf("%w: root element is nil", ErrInvalidArgument)
	case collector == nil:
		return nil, fmt.Errorf("%w: collector is nil", ErrInvalidArgument)
	case src == nil:
		return nil, fmt.Errorf("%w: source is nil", ErrInvalidArgument)
	case factory == nil:
		return nil, fmt.Errorf("%w: mapping factory is nil", ErrInvalidArgument)
	case !reflect.TypeOf(root).Comparable():
		return nil, fmt.Errorf("%w: root element of type %T is not comparable", ErrInvalidArgument, root)
	case !reflect.TypeOf(factory).Comparable():
		return nil, fmt.Errorf("%w: mapping factory of type %T is not comparable", ErrInvalidArgument, factory)
	}

	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Element[M]{
		root:    root,
		factory: factory,
		closure: buildClosure(cfg, collector, src, root, factory),
	}, nil
}

// Root returns the element this closure was resolved from.
func (e *Element[M]) Root() protoreflect.Descriptor {
	return e.root
}

// Len returns the number of mappings in the closure.
func (e *Element[M]) Len() int {
	return len(e.closure.all)
}

// Has reports whether a marker of the named type is present anywhere in the
// closure.
func (e *Element[M]) Has(typ protoreflect.FullName) bool {
	_, ok := e.closure.byType.Get(typ)
	return ok
}

// First returns the first marker of the named type in discovery order, or nil
// if there is none. Markers closer to the root element are found first.
func (e *Element[M]) First(typ protoreflect.FullName) proto.Message {
	mappings, _ := e.closure.byType.Get(typ)
	if len(mappings) == 0 {
		return nil
	}
	return mappings[0].Marker()
}

// ByType returns every marker of the named type in discovery order.
func (e *Element[M]) ByType(typ protoreflect.FullName) []proto.Message {
	mappings, _ := e.closure.byType.Get(typ)
	return markersOf(mappings)
}

// Markers returns every marker in the closure in discovery order.
func (e *Element[M]) Markers() []proto.Message {
	return markersOf(e.closure.all)
}

// HasDeclared is like [Element.Has], but only considers markers directly
// present on the root element.
func (e *Element[M]) HasDeclared(typ protoreflect.FullName) bool {
	return e.FirstDeclared(typ) != nil
}

// FirstDeclared is like [Element.First], but only considers markers directly
// present on the root element.
func (e *Element[M]) FirstDeclared(typ protoreflect.FullName) proto.Message {
	for _, m := range e.declared() {
		if m.MarkerType() == typ {
			return m.Marker()
		}
	}
	return nil
}

// DeclaredByType is like [Element.ByType], but only considers markers directly
// present on the root element.
func (e *Element[M]) DeclaredByType(typ protoreflect.FullName) []proto.Message {
	var markers []proto.Message
	for _, m := range e.declared() {
		if m.MarkerType() == typ {
			markers = append(markers, m.Marker())
		}
	}
	return markers
}

// DeclaredMarkers returns the markers directly present on the root element.
func (e *Element[M]) DeclaredMarkers() []proto.Message {
	return markersOf(e.declared())
}

// All returns an iterator over every mapping in the closure, in discovery
// order. Each call starts a fresh iteration.
func (e *Element[M]) All() iter.Seq[M] {
	return func(yield func(M) bool) {
		for _, m := range e.closure.all {
			if !yield(m) {
				return
			}
		}
	}
}

// Declared returns an iterator over the mappings of markers directly present
// on the root element.
func (e *Element[M]) Declared() iter.Seq[M] {
	return func(yield func(M) bool) {
		for _, m := range e.declared() {
			if !yield(m) {
				return
			}
		}
	}
}

// Types returns an iterator over the names of the marker types present in
// the closure, in sorted order.
func (e *Element[M]) Types() iter.Seq[protoreflect.FullName] {
	return func(yield func(protoreflect.FullName) bool) {
		e.closure.byType.Scan(func(typ protoreflect.FullName, _ []M) bool {
			return yield(typ)
		})
	}
}

// Equal reports whether two elements were resolved from the same root with
// the same mapping factory.
func (e *Element[M]) Equal(other *Element[M]) bool {
	if e == other {
		return true
	}
	if e == nil || other == nil {
		return false
	}
	return e.root == other.root && e.factory == other.factory
}

// Hash returns a hash code consistent with [Element.Equal].
func (e *Element[M]) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	if e != nil {
		maphash.WriteComparable(&h, e.root)
		maphash.WriteComparable(&h, e.factory)
	}
	return h.Sum64()
}

func (e *Element[M]) declared() []M {
	return e.closure.all[:e.closure.declared]
}

// FirstOf returns the first marker of type T in the closure. Markers that are
// not already a T, such as dynamic messages, are converted.
//
// T must be a generated message type. For other types, such as
// *dynamicpb.Message, FirstOf reports false; use [Element.First] instead.
func FirstOf[T proto.Message, M Mapping](e *Element[M]) (T, bool) {
	var zero T
	typ, ok := generatedType[T]()
	if !ok {
		return zero, false
	}
	for _, m := range e.ByType(typ) {
		if t, ok := convert[T](m); ok {
			return t, true
		}
	}
	return zero, false
}

// AllOf returns every marker of type T in the closure, in discovery order.
// Like [FirstOf], it returns nil unless T is a generated message type.
func AllOf[T proto.Message, M Mapping](e *Element[M]) []T {
	typ, ok := generatedType[T]()
	if !ok {
		return nil
	}
	var all []T
	for _, m := range e.ByType(typ) {
		if t, ok := convert[T](m); ok {
			all = append(all, t)
		}
	}
	return all
}

// generatedType returns the full name of the message type T. Only generated
// types can describe themselves through their zero value.
func generatedType[T proto.Message]() (protoreflect.FullName, bool) {
	var zero T
	switch any(zero).(type) {
	case nil, *dynamicpb.Message:
		return "", false
	}
	return zero.ProtoReflect().Descriptor().FullName(), true
}

func convert[T proto.Message](m proto.Message) (T, bool) {
	if t, ok := m.(T); ok {
		return t, true
	}
	var zero T
	data, err := proto.Marshal(m)
	if err != nil {
		return zero, false
	}
	t := zero.ProtoReflect().Type().New().Interface().(T)
	if err := proto.Unmarshal(data, t); err != nil {
		return zero, false
	}
	return t, true
}

func markersOf[M Mapping](mappings []M) []proto.Message {
	if len(mappings) == 0 {
		return nil
	}
	markers := make([]proto.Message, len(mappings))
	for i, m := range mappings {
		markers[i] = m.Marker()
	}
	return markers
}
