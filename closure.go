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
	"github.com/tidwall/btree"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/bufbuild/protomarkers/internal/arena"
)

// node is one traversal step of a closure.
type node[M Mapping] struct {
	mapping M
	typ     protoreflect.FullName
	source  arena.Pointer[node[M]]
}

// closure is the resolved, indexed set of mappings reachable from a root
// element. It is immutable once built.
type closure[M Mapping] struct {
	// all mappings in discovery order. The first declared entries are the
	// markers directly present on the root element.
	all      []M
	declared int
	byType   btree.Map[protoreflect.FullName, []M]
}

// builder performs the breadth-first traversal that produces a closure.
//
// The arena doubles as the work queue: nodes are allocated in discovery
// order, so visiting them in allocation order is a FIFO walk.
type builder[M Mapping] struct {
	*config
	collector Collector
	source    Source
	factory   Factory[M]

	nodes      arena.Arena[node[M]]
	containers map[protoreflect.FullName]*Container
}

func buildClosure[M Mapping](
	cfg *config,
	collector Collector,
	src Source,
	root protoreflect.Descriptor,
	factory Factory[M],
) *closure[M] {
	b := &builder[M]{
		config:     cfg,
		collector:  collector,
		source:     src,
		factory:    factory,
		containers: make(map[protoreflect.FullName]*Container),
	}

	for _, marker := range src.Markers(root) {
		b.add(0, marker)
	}
	declared := b.nodes.Len()

	for ptr := range b.nodes.Pointers() {
		// Contained markers come from the marker's value and are discovered
		// before the meta-markers of its type declaration.
		seen := b.expandContainer(ptr)
		b.expandMeta(ptr, seen)
	}

	c := &closure[M]{
		all:      make([]M, 0, b.nodes.Len()),
		declared: declared,
	}
	for ptr := range b.nodes.Pointers() {
		n := ptr.In(&b.nodes)
		c.all = append(c.all, n.mapping)
		mappings, _ := c.byType.Get(n.typ)
		c.byType.Set(n.typ, append(mappings, n.mapping))
	}
	b.logger.Debug("resolved marker closure",
		zap.Int("mappings", len(c.all)),
		zap.Int("declared", declared),
		zap.Int("types", c.byType.Len()))
	return c
}

// add records a traversal step for marker under the given source node, which
// is nil for markers directly present on the root element. It returns false
// if the step was skipped.
func (b *builder[M]) add(source arena.Pointer[node[M]], marker proto.Message) bool {
	if marker == nil {
		return false
	}
	typ := marker.ProtoReflect().Descriptor().FullName()
	if b.excluded(typ) {
		return false
	}

	var parent Mapping
	if !source.Nil() {
		if b.onChain(source, typ) {
			b.logger.Debug("skipping marker already on its provenance chain",
				zap.String("type", string(typ)),
				zap.Int("source", source.Index()))
			return false
		}
		parent = source.In(&b.nodes).mapping
	}

	ptr := b.nodes.New(node[M]{
		mapping: b.factory.NewMapping(parent, marker),
		typ:     typ,
		source:  source,
	})
	if ce := b.logger.Check(zap.DebugLevel, "discovered marker"); ce != nil {
		ce.Write(
			zap.String("type", string(typ)),
			zap.Int("index", ptr.Index()),
			zap.Int("source", source.Index()))
	}
	return true
}

// onChain reports whether a marker of type typ appears at ptr or any of its
// sources. Refusing such steps is what keeps the traversal finite: every
// provenance chain holds each type at most once.
func (b *builder[M]) onChain(ptr arena.Pointer[node[M]], typ protoreflect.FullName) bool {
	for !ptr.Nil() {
		n := ptr.In(&b.nodes)
		if n.typ == typ {
			return true
		}
		ptr = n.source
	}
	return false
}

// expandContainer adds the markers held by the container at ptr, if any, and
// returns the types of the steps it added.
func (b *builder[M]) expandContainer(ptr arena.Pointer[node[M]]) map[protoreflect.FullName]struct{} {
	n := ptr.In(&b.nodes)
	marker := n.mapping.Marker()
	container := b.container(marker.ProtoReflect().Descriptor())
	if container == nil {
		return nil
	}

	contained, err := container.Extract(marker)
	if err != nil {
		b.handler.HandleWarning(marker.ProtoReflect().Descriptor(), err)
		b.logger.Debug("container markers could not be read",
			zap.String("type", string(n.typ)),
			zap.Error(err))
		return nil
	}
	var added map[protoreflect.FullName]struct{}
	for _, m := range contained {
		if b.add(ptr, m) {
			if added == nil {
				added = make(map[protoreflect.FullName]struct{})
			}
			added[markerType(m)] = struct{}{}
		}
	}
	return added
}

// expandMeta adds the meta-markers of the type of the marker at ptr. A source
// produces at most one step per type: types in seen, which holds the steps
// already taken under ptr, are skipped.
func (b *builder[M]) expandMeta(ptr arena.Pointer[node[M]], seen map[protoreflect.FullName]struct{}) {
	decl := ptr.In(&b.nodes).mapping.Marker().ProtoReflect().Descriptor()

	for _, meta := range b.source.MetaMarkers(decl) {
		if meta == nil {
			continue
		}
		typ := meta.ProtoReflect().Descriptor().FullName()
		if _, ok := seen[typ]; ok {
			b.logger.Debug("skipping meta-marker already found under its source",
				zap.String("type", string(typ)),
				zap.Int("source", ptr.Index()))
			continue
		}
		if b.add(ptr, meta) {
			if seen == nil {
				seen = make(map[protoreflect.FullName]struct{})
			}
			seen[typ] = struct{}{}
		}
	}
}

// container returns how to expand instances of decl, or nil if decl is not a
// container type. Answers are remembered for the duration of the build.
func (b *builder[M]) container(decl protoreflect.MessageDescriptor) *Container {
	if c, ok := b.containers[decl.FullName()]; ok {
		return c
	}
	var found *Container
	if c, ok := b.collector.Container(b.source, decl); ok && c.Extract != nil {
		found = &c
	}
	b.containers[decl.FullName()] = found
	return found
}
