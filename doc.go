// Package protomarkers resolves the declarative metadata attached to protobuf
// elements into a single queryable closure. "Metadata" in this case means
// markers: message-valued custom options set on a descriptor, such as a
// message, field, service, or file.
//
// The closure of an element contains, in breadth-first discovery order:
//  1. The markers directly present on the element.
//  2. The markers held by container markers, i.e. markers whose type groups
//     several instances of a repeatable marker type.
//  3. The meta-markers of every marker found: the markers present on the
//     declaration of the marker's own message type.
//
// Steps 2 and 3 repeat for every marker found, until nothing new is reachable.
// A marker whose type already appears on its own provenance chain is not
// expanded again, so marker types that annotate each other, or themselves,
// still produce a finite closure.
//
// # Elements
//
// An Element is the resolved closure of one root descriptor. It is built once
// by New and is immutable afterwards. Its methods mirror a reflection-style
// query API:
//
//	elem, err := protomarkers.New(
//	    protomarkers.StandardRepeatable(),
//	    protomarkers.OptionsSource{},
//	    msgDesc,
//	    protomarkers.GenericFactory{},
//	)
//	if err != nil {
//	    return err
//	}
//	if elem.Has("acme.validate.Check") {
//	    check := elem.First("acme.validate.Check")
//	    // ...
//	}
//
// Lookups without the "Declared" prefix search the whole closure; lookups with
// it only consider markers directly present on the root element. Single-result
// lookups return the first marker discovered, which is the one closest to the
// root element.
//
// # Sources and Collectors
//
// A Source tells the resolver which markers are present on an element or on a
// marker type declaration. OptionsSource reads them from descriptor options;
// Table serves them from a static table.
//
// A Collector decides which marker types are containers. StandardRepeatable
// implements the usual rule, driven by the well-known markers in the markerpb
// package: a repeatable type names its container with a Repeatable marker, and
// the container declares a repeated field of the repeatable type.
//
// # Mappings
//
// Each step of the traversal produces a Mapping, created by a Factory, that
// pairs the marker with the mapping that led to it. Two elements are equal
// when they were resolved from the same root with the same factory, which is
// why factories must be comparable values.
//
// # Resolvers
//
// A Resolver resolves many roots in parallel and reports invalid roots through
// the reporter package.
package protomarkers
