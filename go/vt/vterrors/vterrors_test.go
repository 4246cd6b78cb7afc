/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vterrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "no error"))
	require.NoError(t, Wrapf(nil, "no error %d", 1))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		err         error
		message     string
		wantMessage string
		wantCode    codes.Code
	}{
		{io.EOF, "read error", "read error: EOF", codes.Unknown},
		{New(codes.AlreadyExists, "oops"), "client error", "client error: oops", codes.AlreadyExists},
		{context.Canceled, "waiting", "waiting: context canceled", codes.Canceled},
	}

	for _, tt := range tests {
		got := Wrap(tt.err, tt.message)
		assert.Equal(t, tt.wantMessage, got.Error())
		assert.Equal(t, tt.wantCode, Code(got))
		assert.ErrorIs(t, got, tt.err)
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(codes.DeadlineExceeded, "timed out after %v", "200ms")
	assert.Equal(t, "timed out after 200ms", err.Error())
	assert.Equal(t, codes.DeadlineExceeded, Code(err))
}

func TestCode(t *testing.T) {
	assert.Equal(t, codes.OK, Code(nil))
	assert.Equal(t, codes.Unknown, Code(errors.New("plain")))
	assert.Equal(t, codes.DeadlineExceeded, Code(context.DeadlineExceeded))
	assert.Equal(t, codes.Unavailable, Code(fmt.Errorf("outer: %w", New(codes.Unavailable, "inner"))))
}

func TestRootCause(t *testing.T) {
	x := New(codes.FailedPrecondition, "error")
	tests := []struct {
		err  error
		want error
	}{{
		err:  nil,
		want: nil,
	}, {
		err:  x,
		want: x,
	}, {
		err:  Wrap(x, "wrapped"),
		want: x,
	}, {
		err:  Wrapf(Wrap(io.EOF, "once"), "twice %d", 2),
		want: io.EOF,
	}}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RootCause(tt.err))
	}
}
