// Package sched implements the single-threaded cooperative coroutine
// scheduler of spec.md §4.8: an intrusively-linked FIFO ready queue and
// the run_ready/has_ready drain contract the host loop calls. The
// teacher has no equivalent (its evaluator runs to completion inline);
// this package is grounded on spec.md §4.8 and §5 alone.
package sched

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dr8co/hammer/interp"
	"github.com/dr8co/hammer/vmvalue"
)

// ResumeToken identifies one suspended native-async call. Firing the
// same token twice is an error (spec.md §4.8); WrapResume enforces this
// so a NativeAsyncFunction implementation in the host ABI layer (package
// hammer) only ever needs to call the wrapped closure it gets back.
type ResumeToken struct {
	id    uuid.UUID
	fired bool
}

func (t *ResumeToken) String() string { return t.id.String() }

// WrapResume mints a fresh ResumeToken for resume and returns a closure
// that fires it at most once; a second call returns an error instead of
// invoking resume again.
func WrapResume(resume func(vmvalue.Value, error)) (*ResumeToken, func(vmvalue.Value, error) error) {
	t := &ResumeToken{id: uuid.New()}
	return t, func(v vmvalue.Value, err error) error {
		if t.fired {
			return fmt.Errorf("sched: resume token %s fired twice", t.id)
		}
		t.fired = true
		resume(v, err)
		return nil
	}
}

// Scheduler owns the ready queue and drives coroutines through a
// interp.Machine until each either completes, panics, or suspends.
type Scheduler struct {
	machine *interp.Machine
	log     *logrus.Logger

	firstReady, lastReady *vmvalue.Coroutine
	readyCount            int
}

// New creates a Scheduler that runs coroutines on machine. log may be
// nil, in which case a default logrus.New() logger writing to stderr is
// used.
func New(machine *interp.Machine, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{machine: machine, log: log}
}

// Enqueue appends co to the tail of the ready queue and marks it Ready.
// co must not already be queued (Next must be nil and co must not
// already be the queue's tail).
func (s *Scheduler) Enqueue(co *vmvalue.Coroutine) {
	co.State = vmvalue.CoroutineReady
	co.Next = nil
	if s.lastReady == nil {
		s.firstReady, s.lastReady = co, co
	} else {
		s.lastReady.Next = co
		s.lastReady = co
	}
	s.readyCount++
}

// HasReady reports whether the ready queue is non-empty.
func (s *Scheduler) HasReady() bool { return s.firstReady != nil }

func (s *Scheduler) dequeue() *vmvalue.Coroutine {
	co := s.firstReady
	s.firstReady = co.Next
	if s.firstReady == nil {
		s.lastReady = nil
	}
	co.Next = nil
	s.readyCount--
	return co
}

// RunReady pops the coroutine at the head of the ready queue, runs it on
// the machine until it returns, panics, or suspends, and reports the
// outcome. It is a no-op returning ok=false when the queue is empty.
func (s *Scheduler) RunReady() (co *vmvalue.Coroutine, outcome interp.Outcome, ok bool) {
	if !s.HasReady() {
		return nil, 0, false
	}
	co = s.dequeue()
	co.State = vmvalue.CoroutineRunning

	result, err := s.machine.Run(co)
	s.log.WithFields(logrus.Fields{
		"coroutine": co.Name,
		"outcome":   outcomeString(result),
		"ready":     s.readyCount,
	}).Debug("sched: ran coroutine")
	if err != nil {
		s.log.WithFields(logrus.Fields{"coroutine": co.Name, "error": err}).Warn("sched: coroutine panicked")
	}
	if co.State == vmvalue.CoroutineDone && co.OnDone != nil {
		co.OnDone(co)
	}
	return co, result, true
}

// Drain calls RunReady until the queue is empty or ctx is canceled,
// mirroring the host loop spec.md §4.8 describes as typically
// alternating external I/O with run_ready.
func (s *Scheduler) Drain(ctx context.Context) error {
	for s.HasReady() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.RunReady()
	}
	return nil
}

// Spawn wraps fn in a new coroutine named name, applies args as its
// parameters, and enqueues it Ready.
func (s *Scheduler) Spawn(name string, fn *vmvalue.Function, args []vmvalue.Value) (*vmvalue.Coroutine, error) {
	co := vmvalue.NewCoroutine(name, fn)
	if err := s.machine.Call(co, vmvalue.FromObject(fn), args); err != nil {
		return nil, fmt.Errorf("sched: spawn %s: %w", name, err)
	}
	s.Enqueue(co)
	return co, nil
}

func outcomeString(o interp.Outcome) string {
	switch o {
	case interp.OutcomeReturned:
		return "returned"
	case interp.OutcomePanicked:
		return "panicked"
	case interp.OutcomeSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}
