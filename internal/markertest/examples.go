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

package markertest

// WorkedExample is the canonical nested container case. Foo carries one A,
// which holds two Bs, each holding two Cs. A, B, and C are all annotated with
// the non-repeatable D. Its closure has 1 A, 2 Bs, 4 Cs and 7 Ds.
const WorkedExample = `
types:
  - name: A
    repeats: B
    meta: [{type: D}]
  - name: B
    repeats: C
    repeatable: A
    attrs: [name]
    meta: [{type: D}]
  - name: C
    repeatable: B
    attrs: [name]
    meta: [{type: D}]
  - name: D
elements:
  Foo:
    - type: A
      value:
        - type: B
          attrs: {name: b0}
          value:
            - {type: C, attrs: {name: c00}}
            - {type: C, attrs: {name: c01}}
        - type: B
          attrs: {name: b1}
          value:
            - {type: C, attrs: {name: c10}}
            - {type: C, attrs: {name: c11}}
  Empty: []
`

// MutualCycle declares two marker types that annotate each other and one
// that annotates itself.
const MutualCycle = `
types:
  - name: X
    meta: [{type: Y}]
  - name: Y
    meta: [{type: X}]
  - name: Self
    meta: [{type: Self}]
elements:
  Mutual: [{type: X}]
  Itself: [{type: Self}]
`

// MustBuild parses and builds a case, panicking on failure.
func MustBuild(text string) *Fixture {
	c, err := Parse(text)
	if err != nil {
		panic(err)
	}
	f, err := c.Build()
	if err != nil {
		panic(err)
	}
	return f
}
