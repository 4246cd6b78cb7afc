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

// Package timer provides a single-goroutine scheduler for recurring
// background work.
package timer

import (
	"container/heap"
	"sync"
	"time"

	"vitess.io/dbpool/go/sync2"
	"vitess.io/dbpool/go/vt/log"
)

// Scheduler runs recurring tasks on a single goroutine. Tasks never run
// concurrently with each other, so a slow task delays the ones behind it.
type Scheduler struct {
	mu    sync.Mutex
	tasks taskHeap
	wake  chan struct{}
	svm   sync2.ServiceManager
}

// Handle is a cancellable reference to a scheduled task.
type Handle struct {
	s    *Scheduler
	task *task
}

type task struct {
	fn       func()
	interval time.Duration
	next     time.Time
	// index is the position in the heap, -1 once removed.
	index int
}

// NewScheduler creates a Scheduler and starts its goroutine.
func NewScheduler() *Scheduler {
	s := &Scheduler{wake: make(chan struct{}, 1)}
	s.svm.Go(s.run)
	return s
}

// ScheduleEvery runs fn every interval, starting one interval from now.
// Scheduling on a Scheduler that has been shut down returns a Handle whose
// task never runs.
func (s *Scheduler) ScheduleEvery(interval time.Duration, fn func()) *Handle {
	if interval <= 0 {
		panic("timer: non-positive interval for ScheduleEvery")
	}
	t := &task{fn: fn, interval: interval, next: time.Now().Add(interval), index: -1}

	s.mu.Lock()
	if s.svm.IsRunning() {
		heap.Push(&s.tasks, t)
	}
	s.mu.Unlock()

	s.notify()
	return &Handle{s: s, task: t}
}

// Cancel stops future runs of the task. A run already in progress is not
// interrupted. Cancel is safe to call more than once.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.s.mu.Lock()
	if h.task.index >= 0 {
		heap.Remove(&h.s.tasks, h.task.index)
	}
	h.s.mu.Unlock()
}

// Len returns the number of scheduled tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}

// Shutdown stops the scheduler, waiting up to timeout for a running task to
// finish. It returns false if the wait timed out, in which case the
// goroutine is abandoned and exits once its current task returns.
func (s *Scheduler) Shutdown(timeout time.Duration) bool {
	s.mu.Lock()
	for s.tasks.Len() > 0 {
		heap.Pop(&s.tasks)
	}
	s.mu.Unlock()

	if !s.svm.StopTimeout(timeout) {
		log.WarnS("scheduler did not stop in time", "timeout", timeout)
		return false
	}
	return true
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(svm *sync2.ServiceManager) {
	shutdown := svm.ShuttingDown()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		wait := time.Hour
		if s.tasks.Len() > 0 {
			wait = time.Until(s.tasks[0].next)
		}
		s.mu.Unlock()

		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-shutdown:
				return
			case <-s.wake:
				continue
			case <-timer.C:
			}
		}

		for {
			select {
			case <-shutdown:
				return
			default:
			}
			t := s.popDue()
			if t == nil {
				break
			}
			s.runTask(t)
		}
	}
}

// popDue pops the earliest task if it is due and pushes it back with its
// next run time, returning it. It returns nil when nothing is due.
func (s *Scheduler) popDue() *task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks.Len() == 0 {
		return nil
	}
	now := time.Now()
	t := s.tasks[0]
	if t.next.After(now) {
		return nil
	}

	t.next = t.next.Add(t.interval)
	if t.next.Before(now) {
		t.next = now.Add(t.interval)
	}
	heap.Fix(&s.tasks, 0)
	return t
}

func (s *Scheduler) runTask(t *task) {
	defer func() {
		if x := recover(); x != nil {
			log.ErrorS("scheduled task panicked", "panic", x)
		}
	}()
	t.fn()
}

type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].next.Before(h[j].next) }

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
