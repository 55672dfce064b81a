package hdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by AwaitEdge once the simulation has shut down.
var ErrStopped = errors.New("hdl: simulation stopped")

// CycleBudgetError reports that a run hit its cycle limit.
type CycleBudgetError struct {
	Limit uint64
}

func (e *CycleBudgetError) Error() string {
	return fmt.Sprintf("hdl: cycle budget of %d exhausted", e.Limit)
}

// Sim is a cooperative single-clock runtime. Every task runs in its own
// goroutine, but only one of them runs at a time. The clock advances only
// after every live task has parked in AwaitEdge, then ticks the model and
// resumes the tasks waiting for that edge one by one, in the order they
// parked, each running until it parks again or exits.
type Sim struct {
	model     Model
	maxCycles uint64
	logger    logrus.FieldLogger

	mu      sync.Mutex
	live    int
	seq     uint64
	pending []spawned
	group   *errgroup.Group
	gctx    context.Context

	parkCh   chan parkRequest
	doneCh   chan struct{}
	stopped  chan struct{}
	stopOnce *sync.Once
	cancel   context.CancelFunc

	cycle atomic.Uint64
	next  Edge

	mainDone atomic.Bool
	failed   atomic.Bool
	firstErr error
}

type spawned struct {
	name string
	task Task
}

// parkRequest is sent by a task that gives up control. A start request
// comes from a task that has not run yet and is resumed in spawn order
// before the clock moves.
type parkRequest struct {
	edge  Edge
	start bool
	seq   uint64
	wake  chan struct{}
}

// SimOption configures a Sim.
type SimOption func(*Sim)

// WithMaxCycles bounds a run to n rising edges. Zero means unbounded.
func WithMaxCycles(n uint64) SimOption {
	return func(s *Sim) {
		s.maxCycles = n
	}
}

// WithLogger sets the logger used for scheduler events.
func WithLogger(logger logrus.FieldLogger) SimOption {
	return func(s *Sim) {
		s.logger = logger
	}
}

// NewSim creates a runtime that clocks model.
func NewSim(model Model, opts ...SimOption) *Sim {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Sim{
		model:  model,
		logger: discard,
		next:   Rising,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cycle returns the number of rising edges the clock has produced.
func (s *Sim) Cycle() uint64 {
	return s.cycle.Load()
}

// Spawn registers a background task. Tasks spawned before Run start with
// it; a task spawned by a running task starts before the next edge.
func (s *Sim) Spawn(name string, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.group == nil {
		s.pending = append(s.pending, spawned{name: name, task: task})
		return
	}

	// The spawner is running, so the clock cannot pass the barrier before
	// the new task is counted.
	s.live++
	s.seq++
	seq := s.seq
	g, ctx := s.group, s.gctx
	g.Go(func() error {
		return s.runTask(ctx, name, task, seq, false)
	})
}

// Run starts every spawned task and main, and clocks the model until main
// returns. The first task error stops the run and is returned. Background
// tasks that end because the run stopped are not errors.
func (s *Sim) Run(ctx context.Context, name string, main Task) error {
	s.parkCh = make(chan parkRequest)
	s.doneCh = make(chan struct{})
	s.stopped = make(chan struct{})
	s.stopOnce = &sync.Once{}
	s.mainDone.Store(false)
	s.failed.Store(false)
	s.firstErr = nil

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	go func() {
		<-gctx.Done()
		s.stop()
	}()

	s.mu.Lock()
	tasks := s.pending
	s.pending = nil
	s.live = len(tasks) + 1
	s.seq = uint64(len(tasks))
	s.group, s.gctx = g, gctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.group, s.gctx = nil, nil
		s.mu.Unlock()
	}()

	for i, t := range tasks {
		g.Go(func() error {
			return s.runTask(gctx, t.name, t.task, uint64(i), false)
		})
	}
	mainSeq := uint64(len(tasks))
	g.Go(func() error {
		defer cancel()
		return s.runTask(gctx, name, main, mainSeq, true)
	})
	g.Go(func() error {
		return s.clock()
	})

	err := g.Wait()
	if first := s.firstError(); first != nil {
		return first
	}
	return err
}

func (s *Sim) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// fail records the first task error and stops the run before any other
// task can observe another edge.
func (s *Sim) fail(err error) {
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()
	s.failed.Store(true)
	s.stop()
	s.cancel()
}

func (s *Sim) firstError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Sim) runTask(ctx context.Context, name string, task Task, seq uint64, main bool) error {
	p := &port{Signals: s.model, sim: s, wake: make(chan struct{}, 1)}

	err := p.park(ctx, parkRequest{start: true, seq: seq, wake: p.wake})
	if err == nil {
		err = task(ctx, p)
	}

	if main {
		s.mainDone.Store(true)
	} else if err != nil && s.mainDone.Load() &&
		(errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled)) {
		err = nil
	}
	if err != nil && !s.failed.Load() {
		err = fmt.Errorf("%s: %w", name, err)
		s.fail(err)
	}

	s.mu.Lock()
	s.live--
	s.mu.Unlock()

	select {
	case s.doneCh <- struct{}{}:
	case <-s.stopped:
	}

	s.logger.WithFields(logrus.Fields{
		"task":  name,
		"cycle": s.Cycle(),
	}).Debug("task finished")

	return err
}

// errHalted ends the clock loop once the run has stopped.
var errHalted = errors.New("halted")

// clock runs the scheduler. It is the only goroutine that ticks the model
// or resumes a task.
func (s *Sim) clock() error {
	var waiting []parkRequest

	// settle blocks until every live task has parked.
	settle := func() error {
		for len(waiting) < s.liveCount() {
			select {
			case req := <-s.parkCh:
				waiting = append(waiting, req)
			case <-s.doneCh:
			case <-s.stopped:
				return errHalted
			}
		}
		select {
		case <-s.stopped:
			return errHalted
		default:
			return nil
		}
	}

	resume := func(req parkRequest) error {
		req.wake <- struct{}{}
		return settle()
	}

	for {
		if err := settle(); err != nil {
			return nil
		}
		if len(waiting) == 0 || s.mainDone.Load() {
			<-s.stopped
			return nil
		}

		if i := firstStart(waiting); i >= 0 {
			req := waiting[i]
			waiting = append(waiting[:i], waiting[i+1:]...)
			if err := resume(req); err != nil {
				return nil
			}
			continue
		}

		edge := s.next
		s.next ^= 1
		if edge == Rising {
			if s.maxCycles > 0 && s.cycle.Load() >= s.maxCycles {
				err := &CycleBudgetError{Limit: s.maxCycles}
				s.fail(err)
				return err
			}
			s.cycle.Add(1)
		}
		s.model.Tick(edge)

		var ready []parkRequest
		kept := waiting[:0]
		for _, req := range waiting {
			if req.edge == edge {
				ready = append(ready, req)
			} else {
				kept = append(kept, req)
			}
		}
		waiting = kept

		for _, req := range ready {
			if err := resume(req); err != nil {
				return nil
			}
		}
	}
}

// firstStart returns the index of the earliest-spawned task that has not
// run yet, or -1.
func firstStart(waiting []parkRequest) int {
	best := -1
	for i, req := range waiting {
		if req.start && (best < 0 || req.seq < waiting[best].seq) {
			best = i
		}
	}
	return best
}

func (s *Sim) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

type port struct {
	Signals
	sim  *Sim
	wake chan struct{}
}

func (p *port) AwaitEdge(ctx context.Context, edge Edge) error {
	return p.park(ctx, parkRequest{edge: edge, wake: p.wake})
}

// park hands control to the clock and blocks until it is resumed.
func (p *port) park(ctx context.Context, req parkRequest) error {
	select {
	case p.sim.parkCh <- req:
	case <-p.sim.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-p.wake:
		return nil
	case <-p.sim.stopped:
		return ErrStopped
	}
}

func (p *port) Cycle() uint64 {
	return p.sim.Cycle()
}
