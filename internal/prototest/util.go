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

// Package prototest contains assertions for comparing protobuf messages in
// tests.
package prototest

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/testing/protocmp"
)

func AssertMessagesEqual(t *testing.T, exp, act proto.Message, msgAndArgs ...any) {
	t.Helper()
	AssertMessagesEqualWithOptions(t, exp, act, nil, msgAndArgs...)
}

func AssertMessagesEqualWithOptions(t *testing.T, exp, act proto.Message, opts []cmp.Option, msgAndArgs ...any) {
	t.Helper()
	cmpOpts := []cmp.Option{protocmp.Transform()}
	cmpOpts = append(cmpOpts, opts...)
	if diff := cmp.Diff(exp, act, cmpOpts...); diff != "" {
		t.Errorf("%smessage mismatch (-want +got):\n%v", prefix(msgAndArgs), diff)
	}
}

// AssertMarkersEqual checks that two lists of markers are equal element-wise,
// including their order.
func AssertMarkersEqual(t *testing.T, exp, act []proto.Message, msgAndArgs ...any) {
	t.Helper()
	if diff := cmp.Diff(exp, act, protocmp.Transform(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("%smarker mismatch (-want +got):\n%v", prefix(msgAndArgs), diff)
	}
}

func prefix(msgAndArgs []any) string {
	switch {
	case len(msgAndArgs) == 1:
		if msg, ok := msgAndArgs[0].(string); ok {
			return msg + ": "
		}
		return fmt.Sprintf("%+v: ", msgAndArgs[0])
	case len(msgAndArgs) > 1:
		return fmt.Sprintf(msgAndArgs[0].(string)+": ", msgAndArgs[1:]...)
	}
	return ""
}
