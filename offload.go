package orbital

import (
	"context"
	"errors"
	"os"
	"sync"

	kitlog "github.com/go-kit/kit/log"
)

// Executor abstracts the execution context predictions are offloaded to: a
// worker pool here, an accelerator queue elsewhere. Submit returns an error
// when the executor cannot take the task; the requester then falls back to
// "no prediction available".
type Executor interface {
	Submit(task func()) error
}

// WorkerPool is a fixed-size goroutine pool Executor.
type WorkerPool struct {
	tasks  chan func()
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewWorkerPool returns a started pool of the given size.
func NewWorkerPool(workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	p := &WorkerPool{tasks: make(chan func(), 64), done: make(chan struct{})}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case task := <-p.tasks:
					task()
				case <-p.done:
					// Drain whatever is still queued, then exit.
					for {
						select {
						case task := <-p.tasks:
							task()
						default:
							return
						}
					}
				}
			}
		}()
	}
	return p
}

// Submit implements the Executor interface. The queue send happens outside
// the mutex: a full queue blocks only this caller, never other submitters or
// Close.
func (p *WorkerPool) Submit(task func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("worker pool is closed")
	}
	p.mu.Unlock()
	select {
	case p.tasks <- task:
		return nil
	case <-p.done:
		return errors.New("worker pool is closed")
	}
}

// Close drains the pool and waits for in-flight tasks.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
	p.mu.Unlock()
	p.wg.Wait()
	// A submitter racing Close may still have enqueued after the workers
	// exited; run any straggler so its handle completes.
	for {
		select {
		case task := <-p.tasks:
			task()
		default:
			return
		}
	}
}

// SyncExecutor runs tasks inline on the calling goroutine. Useful for tests
// and for hosts which schedule their own prediction cadence.
type SyncExecutor struct{}

// Submit implements the Executor interface.
func (SyncExecutor) Submit(task func()) error {
	task()
	return nil
}

// Handle is the future of one submitted prediction.
type Handle struct {
	bodyID int
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	completed bool
	traj      Trajectory
	callbacks []func(Trajectory)
}

// Cancel aborts the rollout; the handle still completes, with whatever was
// computed and a cancelled reason.
func (h *Handle) Cancel() {
	h.cancel()
}

// OnComplete registers fn to run when the prediction completes. If it
// already has, fn runs immediately on the calling goroutine.
func (h *Handle) OnComplete(fn func(Trajectory)) {
	h.mu.Lock()
	if !h.completed {
		h.callbacks = append(h.callbacks, fn)
		h.mu.Unlock()
		return
	}
	traj := h.traj
	h.mu.Unlock()
	fn(traj)
}

// Result returns the trajectory and whether the prediction has completed,
// without blocking.
func (h *Handle) Result() (Trajectory, bool) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.traj, true
	default:
		return Trajectory{}, false
	}
}

// Wait blocks until the prediction completes and returns its trajectory.
func (h *Handle) Wait() Trajectory {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.traj
}

func (h *Handle) complete(traj Trajectory) {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.completed = true
	h.traj = traj
	cbs := h.callbacks
	h.callbacks = nil
	h.mu.Unlock()
	close(h.done)
	for _, fn := range cbs {
		fn(traj)
	}
}

// Predictor offloads trajectory rollouts so horizons of tens of thousands of
// steps never block the real-time loop. At most one prediction per body is
// in flight: a new request cancels and replaces the outstanding one, and a
// stale result never overwrites a newer request's output.
type Predictor struct {
	reg     *Registry
	cfg     Config
	exec    Executor
	ownPool *WorkerPool
	logger  kitlog.Logger

	mu        sync.Mutex
	gen       uint64
	inflight  map[int]*Handle
	latest    map[int]Trajectory
	latestGen map[int]uint64
}

// NewPredictor returns a predictor over the given registry. A nil executor
// gets a worker pool sized from the configuration; a nil logger logs logfmt
// to stdout.
func NewPredictor(reg *Registry, cfg Config, exec Executor, logger kitlog.Logger) *Predictor {
	if logger == nil {
		logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	}
	p := &Predictor{
		reg:       reg,
		cfg:       cfg,
		exec:      exec,
		logger:    kitlog.With(logger, "subsys", "predict"),
		inflight:  make(map[int]*Handle),
		latest:    make(map[int]Trajectory),
		latestGen: make(map[int]uint64),
	}
	if p.exec == nil {
		p.ownPool = NewWorkerPool(cfg.Workers)
		p.exec = p.ownPool
	}
	return p
}

// Request submits a prediction for the body's current state. The registry
// snapshot is copied at submission time, so the rollout runs against a
// stable view. steps <= 0 selects the adaptive budget, Δt <= 0 the
// configured default.
func (p *Predictor) Request(b *Body, steps int, Δt float64, fid Fidelity) *Handle {
	in := inputFromBody(b, p.reg.Snapshot(), steps, Δt, fid)
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.gen++
	h := &Handle{bodyID: b.ID, gen: p.gen, cancel: cancel, done: make(chan struct{})}
	if prev, found := p.inflight[b.ID]; found {
		prev.cancel() // cancel-and-replace
	}
	p.inflight[b.ID] = h
	p.mu.Unlock()

	task := func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Log("level", "critical", "worker", "fault", "recovered", r, "body", in.BodyID)
				p.finish(h, Trajectory{BodyID: in.BodyID, Δt: in.Δt, Reason: StopCancelled}, false)
			}
		}()
		traj := predict(ctx, in, p.cfg)
		keep := true
		if ctx.Err() != nil || traj.Reason == StopCancelled {
			traj = Trajectory{BodyID: in.BodyID, Δt: in.Δt, Reason: StopCancelled}
			keep = false
		} else if _, alive := p.reg.Body(in.BodyID); !alive {
			// Body destroyed while the prediction was in flight.
			traj = Trajectory{BodyID: in.BodyID, Δt: in.Δt, Reason: StopCancelled}
			keep = false
		}
		p.finish(h, traj, keep)
	}

	if err := p.exec.Submit(task); err != nil {
		p.logger.Log("level", "warning", "submit", err, "body", in.BodyID)
		p.finish(h, Trajectory{BodyID: in.BodyID, Δt: in.Δt, Reason: StopCancelled}, false)
	}
	return h
}

func (p *Predictor) finish(h *Handle, traj Trajectory, keep bool) {
	p.mu.Lock()
	if cur, found := p.inflight[h.bodyID]; found && cur == h {
		delete(p.inflight, h.bodyID)
	}
	if keep {
		// Wholesale replacement, and only ever forward in generations.
		if last, found := p.latestGen[h.bodyID]; !found || h.gen > last {
			p.latest[h.bodyID] = traj
			p.latestGen[h.bodyID] = h.gen
		}
	}
	p.mu.Unlock()
	h.complete(traj)
}

// Latest returns the most recent completed trajectory of a body, if any.
func (p *Predictor) Latest(bodyID int) (Trajectory, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	traj, found := p.latest[bodyID]
	return traj, found
}

// Forget drops any stored trajectory of a body, e.g. after its removal.
func (p *Predictor) Forget(bodyID int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.latest, bodyID)
	delete(p.latestGen, bodyID)
}

// Close shuts the predictor's own worker pool down, if it created one.
func (p *Predictor) Close() {
	if p.ownPool != nil {
		p.ownPool.Close()
	}
}
