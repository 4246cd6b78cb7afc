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

package dbpool

import (
	"google.golang.org/grpc/codes"

	"vitess.io/dbpool/go/vt/vterrors"
)

var (
	// ErrTimeout is returned when no connection became available within the
	// pool's ConnectTimeout.
	ErrTimeout = vterrors.New(codes.DeadlineExceeded, "connection pool timed out")

	// ErrCancelled is returned when the caller's context was cancelled while
	// waiting for a connection.
	ErrCancelled = vterrors.New(codes.Canceled, "connection pool wait cancelled")

	// ErrPoolClosed is returned if the pool is used after Close.
	ErrPoolClosed = vterrors.New(codes.Unavailable, "connection pool is closed")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = vterrors.New(codes.InvalidArgument, "invalid pool configuration")
)
