// Package gate implements the motorized gate controller: a single-slot
// command queue feeding a background task that ramps two shutter
// actuators between configured duty-cycle endpoints.
package gate

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/weighworks/gatescale/pkg/framework"
)

// State is the observable discrete gate state.
type State int

const (
	StateDisabled State = iota
	StateClose
	StateOpen
)

var stateStrings = []string{"Disabled", "Close", "Open"}

// String returns the display name of the state.
func (s State) String() string {
	if s < StateDisabled || s > StateOpen {
		return "Unknown"
	}
	return stateStrings[s]
}

// Ratio convention: 0.0 is fully open, 1.0 fully closed, anything in
// between proportional. RatioDisabled releases the gate without moving
// it.
const (
	RatioOpen     = 0.0
	RatioClosed   = 1.0
	RatioDisabled = -1.0
)

const (
	// ratioEpsilon bounds both the move deadband and the thresholds
	// for deriving the discrete state at the travel ends.
	ratioEpsilon = 0.0001
	// minRampDuration skips ramping for negligible moves.
	minRampDuration = time.Millisecond
	// speedFloor keeps the ramp duration bounded.
	speedFloor = 0.0001

	unknownRatio = -2.0
)

type command struct {
	ratio float64
}

// Controller converts gate commands into time-ramped shutter motion.
//
// The command queue holds one command: senders block while a previous
// command is pending, so commands apply in send order and are never
// merged. A running ramp is not preemptible; commands arriving during a
// ramp wait for it to finish.
type Controller struct {
	mu    sync.Mutex // guards cfg and state
	cfg   Config
	state State

	out   Output
	clock fx.Clock
	cmds  chan command
	done  chan struct{}
}

// NewController creates a Controller. The initial reported state
// follows the persisted enable flag; no actuator output is driven until
// the first command.
func NewController(cfg Config, out Output, clock fx.Clock) *Controller {
	state := StateDisabled
	if cfg.Enable {
		state = StateOpen
	}
	return &Controller{
		cfg:   cfg,
		state: state,
		out:   out,
		clock: clock,
		cmds:  make(chan command, 1),
		done:  make(chan struct{}, 1),
	}
}

// Name implements framework.Named.
func (c *Controller) Name() string { return "gate" }

// State returns the reported discrete state. After a move to a target
// strictly between the open and close thresholds the previous discrete
// state is retained.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns a copy of the current gate configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig is the single mutation entry point for the gate
// configuration. It affects the next move; a running ramp keeps the
// endpoints it started with.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

// SetRatio enqueues a proportional target, blocking while a previous
// command is still pending. With block set it also waits for the move
// to complete.
func (c *Controller) SetRatio(ctx context.Context, ratio float64, block bool) error {
	if ratio != RatioDisabled {
		ratio = clamp01(ratio)
	}
	// Clear a stale completion signal before enqueueing.
	select {
	case <-c.done:
	default:
	}
	select {
	case c.cmds <- command{ratio: ratio}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if block {
		select {
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SetState enqueues a discrete target.
func (c *Controller) SetState(ctx context.Context, s State, block bool) error {
	ratio := RatioDisabled
	switch s {
	case StateOpen:
		ratio = RatioOpen
	case StateClose:
		ratio = RatioClosed
	}
	return c.SetRatio(ctx, ratio, block)
}

// Run executes the ramp task until the context is canceled. Once a
// command is dequeued it runs to completion without suspension.
func (c *Controller) Run(ctx context.Context) error {
	prev := unknownRatio
	for {
		var cmd command
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd = <-c.cmds:
		}

		if cmd.ratio == RatioDisabled {
			// Keep prev for ramp continuity when re-enabled.
			c.setState(StateDisabled)
			c.signalDone()
			continue
		}

		target := cmd.ratio
		switch {
		case prev == unknownRatio:
			// No meaningful "from" position yet.
			c.apply(target)
		case math.Abs(target-prev) > ratioEpsilon:
			c.ramp(prev, target)
		}

		if target <= ratioEpsilon {
			c.setState(StateOpen)
		} else if target >= 1-ratioEpsilon {
			c.setState(StateClose)
		}
		// In-between targets retain the previous discrete state.

		prev = target
		c.signalDone()
	}
}

// ramp drives a bounded-duration linear transition from prev to target.
// The loop is a deliberate tight spin: the actuator write is a single
// register-sized update and spinning keeps the motion smooth. The task
// cannot service new commands until the ramp ends.
func (c *Controller) ramp(prev, target float64) {
	delta := target - prev
	cfg := c.Config()
	speed := cfg.CloseSpeedPctS
	if delta < 0 {
		speed = cfg.OpenSpeedPctS
	}
	if speed < speedFloor {
		speed = speedFloor
	}
	dur := time.Duration(math.Abs(delta/speed) * float64(time.Second))
	if dur < minRampDuration {
		c.apply(target)
		return
	}

	glog.V(2).Infof("gate ramp %.4f -> %.4f over %v", prev, target, dur)
	start := c.clock.Now()
	for {
		elapsed := c.clock.Now().Sub(start)
		if elapsed > dur {
			break
		}
		c.out.SetLevels(Levels(cfg, prev+delta*(float64(elapsed)/float64(dur))))
	}
	// Correct any interpolation drift.
	c.out.SetLevels(Levels(cfg, target))
}

func (c *Controller) apply(ratio float64) {
	s0, s1 := Levels(c.Config(), ratio)
	c.out.SetLevels(s0, s1)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) signalDone() {
	select {
	case c.done <- struct{}{}:
	default:
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
