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

// Package sync2 provides synchronization helpers not found in the standard
// library.
package sync2

import (
	"sync"
	"sync/atomic"
	"time"
)

// These are the three predefined states of a service.
const (
	SERVICE_STOPPED = iota
	SERVICE_RUNNING
	SERVICE_SHUTTING_DOWN
)

var stateNames = []string{
	"Stopped",
	"Running",
	"ShuttingDown",
}

// ServiceManager manages the state of a background goroutine through its
// lifecycle.
type ServiceManager struct {
	mu    sync.Mutex
	state atomic.Int64
	// shutdown is created when the service starts and is closed when the
	// service enters the SERVICE_SHUTTING_DOWN state.
	shutdown chan struct{}
	// done is closed when the service func returns.
	done chan struct{}
}

// Go tries to change the state from SERVICE_STOPPED to SERVICE_RUNNING.
// If the current state is not SERVICE_STOPPED (already running),
// it returns false immediately.
// On successful transition, it launches the service as a goroutine and
// returns true. The service func must watch ShuttingDown() and return once
// it is closed. When the service func returns, the state is reverted to
// SERVICE_STOPPED.
func (svm *ServiceManager) Go(service func(svm *ServiceManager)) bool {
	svm.mu.Lock()
	defer svm.mu.Unlock()
	if !svm.state.CompareAndSwap(SERVICE_STOPPED, SERVICE_RUNNING) {
		return false
	}
	svm.shutdown = make(chan struct{})
	done := make(chan struct{})
	svm.done = done
	go func() {
		defer close(done)
		service(svm)
		svm.state.Store(SERVICE_STOPPED)
	}()
	return true
}

// Stop tries to change the state from SERVICE_RUNNING to
// SERVICE_SHUTTING_DOWN and waits for the service to finish.
// It returns false if the service was not running.
func (svm *ServiceManager) Stop() bool {
	return svm.StopTimeout(0)
}

// StopTimeout behaves like Stop but gives up waiting after timeout. A zero
// timeout waits forever. It returns true only if the service was running and
// finished within the timeout; a service that overruns is abandoned and will
// still revert to SERVICE_STOPPED whenever it returns.
func (svm *ServiceManager) StopTimeout(timeout time.Duration) bool {
	svm.mu.Lock()
	defer svm.mu.Unlock()
	if !svm.state.CompareAndSwap(SERVICE_RUNNING, SERVICE_SHUTTING_DOWN) {
		return false
	}
	close(svm.shutdown)

	if timeout <= 0 {
		<-svm.done
		return true
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-svm.done:
		return true
	case <-t.C:
		return false
	}
}

// ShuttingDown returns a channel that the service can select on to be
// notified when it should shut down. It must only be called from the service
// func, or after Go has returned.
func (svm *ServiceManager) ShuttingDown() chan struct{} {
	return svm.shutdown
}

// IsRunning returns true if the state is SERVICE_RUNNING.
func (svm *ServiceManager) IsRunning() bool {
	return svm.state.Load() == SERVICE_RUNNING
}

// Wait waits for the service to terminate if it's currently running.
func (svm *ServiceManager) Wait() {
	svm.mu.Lock()
	done := svm.done
	svm.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns the current state of the service.
// This should only be used to report the current state.
func (svm *ServiceManager) State() int64 {
	return svm.state.Load()
}

// StateName returns the name of the current state.
func (svm *ServiceManager) StateName() string {
	return stateNames[svm.State()]
}
