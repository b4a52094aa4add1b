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
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Source enumerates the markers directly present on elements and on marker
// type declarations. Both methods must return markers in a stable order.
type Source interface {
	// Markers returns the markers directly present on element.
	Markers(element protoreflect.Descriptor) []proto.Message
	// MetaMarkers returns the markers directly present on the declaration of
	// a marker type.
	MetaMarkers(decl protoreflect.MessageDescriptor) []proto.Message
}

// DescriptorResolver finds descriptors by full name. It is satisfied by
// *protoregistry.Files.
type DescriptorResolver interface {
	FindDescriptorByName(protoreflect.FullName) (protoreflect.Descriptor, error)
}

// OptionsSource is a [Source] that reads markers from descriptor options.
//
// Every message-valued extension set on an element's options is a marker.
// Markers are returned in ascending order of extension field number; the
// elements of a repeated extension are returned in list order. Scalar options
// and the regular fields of the options messages are ignored.
type OptionsSource struct {
	// If set, a marker type declaration is looked up by full name before its
	// options are read. This is needed when marker values were built against
	// a different copy of the descriptors than the one carrying the options,
	// which is common with dynamic extension types.
	Resolver DescriptorResolver
	// If set, options with unrecognized fields are re-parsed with this
	// resolver, so that custom options which were unknown when the
	// descriptors were loaded are still found.
	ExtensionResolver protoregistry.ExtensionTypeResolver
}

var _ Source = OptionsSource{}

// Markers implements [Source].
func (s OptionsSource) Markers(element protoreflect.Descriptor) []proto.Message {
	if element == nil {
		return nil
	}
	opts := element.Options()
	if opts == nil || !opts.ProtoReflect().IsValid() {
		return nil
	}
	msg := s.reparse(opts).ProtoReflect()

	type option struct {
		field protoreflect.FieldDescriptor
		value protoreflect.Value
	}
	var found []option
	msg.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		if fd.IsExtension() && fd.Message() != nil && !fd.IsMap() {
			found = append(found, option{fd, v})
		}
		return true
	})
	// Range order is unspecified.
	slices.SortFunc(found, func(a, b option) int {
		return int(a.field.Number()) - int(b.field.Number())
	})

	var markers []proto.Message
	for _, opt := range found {
		if !opt.field.IsList() {
			markers = append(markers, opt.value.Message().Interface())
			continue
		}
		list := opt.value.List()
		for i := range list.Len() {
			markers = append(markers, list.Get(i).Message().Interface())
		}
	}
	return markers
}

// MetaMarkers implements [Source].
func (s OptionsSource) MetaMarkers(decl protoreflect.MessageDescriptor) []proto.Message {
	if decl == nil {
		return nil
	}
	if s.Resolver != nil {
		d, err := s.Resolver.FindDescriptorByName(decl.FullName())
		if md, ok := d.(protoreflect.MessageDescriptor); err == nil && ok {
			decl = md
		}
	}
	return s.Markers(decl)
}

func (s OptionsSource) reparse(opts proto.Message) proto.Message {
	if s.ExtensionResolver == nil || len(opts.ProtoReflect().GetUnknown()) == 0 {
		return opts
	}
	data, err := proto.MarshalOptions{AllowPartial: true}.Marshal(opts)
	if err != nil {
		return opts
	}
	clone := opts.ProtoReflect().Type().New().Interface()
	err = proto.UnmarshalOptions{
		AllowPartial: true,
		Resolver:     s.ExtensionResolver,
	}.Unmarshal(data, clone)
	if err != nil {
		return opts
	}
	return clone
}

// Table is a [Source] backed by a static table of pre-extracted markers,
// keyed by the full name of the element or marker type.
//
// Files are keyed by their path, since their full name is their package.
type Table struct {
	Elements map[string][]proto.Message
	Types    map[protoreflect.FullName][]proto.Message
}

var _ Source = Table{}

// Markers implements [Source].
func (t Table) Markers(element protoreflect.Descriptor) []proto.Message {
	if element == nil {
		return nil
	}
	if file, ok := element.(protoreflect.FileDescriptor); ok {
		return t.Elements[file.Path()]
	}
	return t.Elements[string(element.FullName())]
}

// MetaMarkers implements [Source].
func (t Table) MetaMarkers(decl protoreflect.MessageDescriptor) []proto.Message {
	if decl == nil {
		return nil
	}
	return t.Types[decl.FullName()]
}
