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

// Package markerpb provides the well-known marker types that control how
// marker closures are resolved. They are the equivalent of the following
// source file:
//
//	syntax = "proto2";
//	package buf.markers.v1;
//	import "google/protobuf/descriptor.proto";
//
//	message Repeatable {
//	  optional string container = 1;
//	}
//	message RepeatableContainer {
//	  optional string element = 1;
//	}
//	extend google.protobuf.MessageOptions {
//	  optional Repeatable repeatable = 51200;
//	  optional RepeatableContainer repeatable_container = 51201;
//	}
//
// The descriptors are built when this package is initialized and values are
// represented with dynamicpb. Markers are recognized by full name, so a copy
// of this file compiled by another tool is understood as well.
//
// Markers of these types are never part of a resolved closure.
package markerpb

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	// Package is the proto package of the well-known marker types.
	Package protoreflect.FullName = "buf.markers.v1"
	// Path is the path of the file that declares the well-known marker types.
	Path = "buf/markers/v1/markers.proto"

	RepeatableName          protoreflect.FullName = Package + ".Repeatable"
	RepeatableContainerName protoreflect.FullName = Package + ".RepeatableContainer"

	RepeatableFieldNumber          protoreflect.FieldNumber = 51200
	RepeatableContainerFieldNumber protoreflect.FieldNumber = 51201
)

var (
	// File is the descriptor of the well-known marker types.
	File protoreflect.FileDescriptor

	// E_Repeatable marks a message as repeatable, naming its container.
	E_Repeatable protoreflect.ExtensionType
	// E_RepeatableContainer marks a message as a container, naming the
	// repeatable type it groups.
	E_RepeatableContainer protoreflect.ExtensionType

	types protoregistry.Types
)

func init() {
	fd, err := protodesc.NewFile(fileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(err.Error())
	}
	File = fd
	E_Repeatable = dynamicpb.NewExtensionType(fd.Extensions().ByName("repeatable"))
	E_RepeatableContainer = dynamicpb.NewExtensionType(fd.Extensions().ByName("repeatable_container"))
	for _, xt := range []protoreflect.ExtensionType{E_Repeatable, E_RepeatableContainer} {
		if err := types.RegisterExtension(xt); err != nil {
			panic(err.Error())
		}
	}
}

// Types returns a registry holding the well-known extensions. It is suitable
// as a resolver when unmarshaling options that may carry them.
func Types() *protoregistry.Types {
	return &types
}

// NewRepeatable returns a Repeatable marker naming the given container type.
func NewRepeatable(container protoreflect.FullName) proto.Message {
	return newMarker(RepeatableName, "container", string(container))
}

// NewRepeatableContainer returns a RepeatableContainer marker naming the given
// repeatable element type.
func NewRepeatableContainer(element protoreflect.FullName) proto.Message {
	return newMarker(RepeatableContainerName, "element", string(element))
}

// ContainerOf returns the container named by a Repeatable marker. It reports
// false if m is not a Repeatable marker.
func ContainerOf(m proto.Message) (protoreflect.FullName, bool) {
	return nameIn(m, RepeatableName, "container")
}

// ElementOf returns the repeatable type named by a RepeatableContainer marker.
// It reports false if m is not a RepeatableContainer marker.
func ElementOf(m proto.Message) (protoreflect.FullName, bool) {
	return nameIn(m, RepeatableContainerName, "element")
}

// IsWellKnown reports whether the named marker type belongs to this package.
func IsWellKnown(name protoreflect.FullName) bool {
	return name.Parent() == Package
}

func newMarker(name protoreflect.FullName, field protoreflect.Name, value string) proto.Message {
	md := File.Messages().ByName(name.Name())
	msg := dynamicpb.NewMessage(md)
	msg.Set(md.Fields().ByName(field), protoreflect.ValueOfString(value))
	return msg
}

func nameIn(m proto.Message, want protoreflect.FullName, field protoreflect.Name) (protoreflect.FullName, bool) {
	if m == nil {
		return "", false
	}
	msg := m.ProtoReflect()
	if msg.Descriptor().FullName() != want {
		return "", false
	}
	fd := msg.Descriptor().Fields().ByName(field)
	if fd == nil || fd.Kind() != protoreflect.StringKind || fd.IsList() {
		return "", false
	}
	name := protoreflect.FullName(msg.Get(fd).String())
	if !name.IsValid() {
		return "", false
	}
	return name, true
}

func fileProto() *descriptorpb.FileDescriptorProto {
	stringField := func(name string) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(name),
			Number:   proto.Int32(1),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
		}
	}
	extension := func(name, jsonName, typeName string, number protoreflect.FieldNumber) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:     proto.String(name),
			JsonName: proto.String(jsonName),
			Number:   proto.Int32(int32(number)),
			Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
			TypeName: proto.String("." + typeName),
			Extendee: proto.String(".google.protobuf.MessageOptions"),
		}
	}
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(Path),
		Package:    proto.String(string(Package)),
		Dependency: []string{"google/protobuf/descriptor.proto"},
		Syntax:     proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name:  proto.String(string(RepeatableName.Name())),
				Field: []*descriptorpb.FieldDescriptorProto{stringField("container")},
			},
			{
				Name:  proto.String(string(RepeatableContainerName.Name())),
				Field: []*descriptorpb.FieldDescriptorProto{stringField("element")},
			},
		},
		Extension: []*descriptorpb.FieldDescriptorProto{
			extension("repeatable", "repeatable", string(RepeatableName), RepeatableFieldNumber),
			extension("repeatable_container", "repeatableContainer", string(RepeatableContainerName), RepeatableContainerFieldNumber),
		},
	}
}
