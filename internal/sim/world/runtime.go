package world

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"floeworld/internal/protocol"
)

// RuntimeConfig sets the pacing of a running simulation loop.
type RuntimeConfig struct {
	TickRateHz       int  // simulation ticks per second when running
	PushEveryTicks   int  // state broadcast divisor, 0 disables push
	SampleEveryTicks int  // OnSample divisor, 0 disables sampling
	AutoStart        bool // begin ticking immediately on Run
}

// Runtime owns a World on a single goroutine and serializes all outside
// access through request channels. The World itself is never touched from
// another goroutine.
type Runtime struct {
	w   *World
	cfg RuntimeConfig

	// OnSample is invoked on the loop goroutine every SampleEveryTicks ticks
	// with a fresh snapshot. Set before Run; callbacks must not block.
	OnSample func(protocol.WorldState)

	stateReq  chan chan protocol.WorldState
	animalReq chan animalReq
	stepReq   chan stepReq
	resetReq  chan chan protocol.WorldState
	runReq    chan runReq
	subscribe chan chan []byte
	unsub     chan chan []byte
	stop      chan struct{}
	stopOnce  sync.Once
}

type animalReq struct {
	id    string
	reply chan animalReply
}

type animalReply struct {
	animal protocol.AnimalState
	ok     bool
}

type stepReq struct {
	n     int
	reply chan stepReply
}

type stepReply struct {
	state protocol.WorldState
	err   error
}

type runReq struct {
	start bool
	reply chan bool
}

func NewRuntime(w *World, cfg RuntimeConfig) *Runtime {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 10
	}
	return &Runtime{
		w:         w,
		cfg:       cfg,
		stateReq:  make(chan chan protocol.WorldState),
		animalReq: make(chan animalReq),
		stepReq:   make(chan stepReq),
		resetReq:  make(chan chan protocol.WorldState),
		runReq:    make(chan runReq),
		subscribe: make(chan chan []byte),
		unsub:     make(chan chan []byte),
		stop:      make(chan struct{}),
	}
}

// Run drives the loop until ctx is canceled or Stop is called. All World
// mutation happens here.
func (r *Runtime) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	running := r.cfg.AutoStart
	subs := make(map[chan []byte]struct{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		case reply := <-r.stateReq:
			reply <- r.w.Snapshot()
		case req := <-r.animalReq:
			a, ok := r.w.AnimalByID(req.id)
			req.reply <- animalReply{animal: a, ok: ok}
		case req := <-r.stepReq:
			err := r.w.Step(req.n)
			req.reply <- stepReply{state: r.w.Snapshot(), err: err}
			r.afterAdvance(subs)
		case reply := <-r.resetReq:
			r.w.Reset()
			reply <- r.w.Snapshot()
			r.afterAdvance(subs)
		case req := <-r.runReq:
			running = req.start
			req.reply <- running
		case ch := <-r.subscribe:
			subs[ch] = struct{}{}
		case ch := <-r.unsub:
			delete(subs, ch)
		case <-ticker.C:
			if !running {
				continue
			}
			r.w.Tick()
			r.afterAdvance(subs)
		}
	}
}

// Stop shuts the loop down. Safe to call more than once.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// afterAdvance fans out push/sample work on the divisor boundaries.
func (r *Runtime) afterAdvance(subs map[chan []byte]struct{}) {
	tick := r.w.TickCount()
	push := r.cfg.PushEveryTicks > 0 && len(subs) > 0 && tick%uint64(r.cfg.PushEveryTicks) == 0
	sample := r.cfg.SampleEveryTicks > 0 && r.OnSample != nil && tick%uint64(r.cfg.SampleEveryTicks) == 0
	if !push && !sample {
		return
	}
	st := r.w.Snapshot()
	if sample {
		r.OnSample(st)
	}
	if push {
		raw, err := json.Marshal(protocol.NewStateMsg(st))
		if err != nil {
			return
		}
		for ch := range subs {
			sendLatest(ch, raw)
		}
	}
}

// State returns a snapshot of the current world.
func (r *Runtime) State(ctx context.Context) (protocol.WorldState, error) {
	reply := make(chan protocol.WorldState, 1)
	select {
	case r.stateReq <- reply:
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
}

// Animal looks up a single agent by id.
func (r *Runtime) Animal(ctx context.Context, id string) (protocol.AnimalState, bool, error) {
	req := animalReq{id: id, reply: make(chan animalReply, 1)}
	select {
	case r.animalReq <- req:
	case <-ctx.Done():
		return protocol.AnimalState{}, false, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.animal, rep.ok, nil
	case <-ctx.Done():
		return protocol.AnimalState{}, false, ctx.Err()
	}
}

// Step advances the world n ticks and returns the resulting snapshot.
func (r *Runtime) Step(ctx context.Context, n int) (protocol.WorldState, error) {
	req := stepReq{n: n, reply: make(chan stepReply, 1)}
	select {
	case r.stepReq <- req:
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
	select {
	case rep := <-req.reply:
		return rep.state, rep.err
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
}

// Reset reinitializes the world and returns the fresh snapshot.
func (r *Runtime) Reset(ctx context.Context) (protocol.WorldState, error) {
	reply := make(chan protocol.WorldState, 1)
	select {
	case r.resetReq <- reply:
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return protocol.WorldState{}, ctx.Err()
	}
}

// SetRunning starts or pauses automatic ticking and reports the new state.
func (r *Runtime) SetRunning(ctx context.Context, start bool) (bool, error) {
	req := runReq{start: start, reply: make(chan bool, 1)}
	select {
	case r.runReq <- req:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case v := <-req.reply:
		return v, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Subscribe registers a push channel for state broadcasts. The channel should
// be buffered; a slow consumer loses intermediate frames, never blocks the
// loop.
func (r *Runtime) Subscribe(ctx context.Context, ch chan []byte) error {
	select {
	case r.subscribe <- ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) Unsubscribe(ch chan []byte) {
	select {
	case r.unsub <- ch:
	case <-r.stop:
	}
}

// sendLatest delivers b without blocking, preferring the newest frame when
// the receiver lags.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
