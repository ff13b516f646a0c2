package gate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock advances a fixed step on every reading, so ramps complete
// without wall-clock delay.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

type recOutput struct {
	mu     sync.Mutex
	levels [][2]uint16
}

func (o *recOutput) SetLevels(s0, s1 uint16) {
	o.mu.Lock()
	o.levels = append(o.levels, [2]uint16{s0, s1})
	o.mu.Unlock()
}

func (o *recOutput) snapshot() [][2]uint16 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][2]uint16(nil), o.levels...)
}

func startController(t *testing.T, cfg Config) (*Controller, *recOutput) {
	t.Helper()
	out := &recOutput{}
	c := NewController(cfg, out, &fakeClock{step: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
	return c, out
}

func TestInitialStateFollowsEnable(t *testing.T) {
	cfg := DefaultConfig
	c := NewController(cfg, LogOutput{}, &fakeClock{})
	require.Equal(t, StateDisabled, c.State())

	cfg.Enable = true
	c = NewController(cfg, LogOutput{}, &fakeClock{})
	require.Equal(t, StateOpen, c.State())
}

func TestFirstCommandSetsDirectly(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	require.NoError(t, c.SetRatio(context.Background(), 0.5, true))

	writes := out.snapshot()
	require.Len(t, writes, 1)
	s0, s1 := Levels(DefaultConfig, 0.5)
	require.Equal(t, [2]uint16{s0, s1}, writes[0])
}

func TestRampMonotonicAndExactFinal(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetRatio(ctx, 0.2, true))
	before := len(out.snapshot())

	require.NoError(t, c.SetRatio(ctx, 0.8, true))
	writes := out.snapshot()[before:]
	// 0.2 -> 0.8 at the default close speed takes several interpolation
	// steps with the fake clock, not a single jump.
	require.Greater(t, len(writes), 2)
	for i := 1; i < len(writes); i++ {
		require.GreaterOrEqual(t, writes[i][0], writes[i-1][0], "shutter0 write %d regressed", i)
	}
	s0, s1 := Levels(DefaultConfig, 0.8)
	require.Equal(t, [2]uint16{s0, s1}, writes[len(writes)-1])
}

func TestSetRatioIdempotentWithinEpsilon(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetRatio(ctx, 0.5, true))
	n := len(out.snapshot())

	require.NoError(t, c.SetRatio(ctx, 0.5, true))
	require.Len(t, out.snapshot(), n)
}

func TestDisableKeepsRatioForContinuity(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetRatio(ctx, 0.8, true))
	n := len(out.snapshot())

	require.NoError(t, c.SetState(ctx, StateDisabled, true))
	require.Equal(t, StateDisabled, c.State())
	require.Len(t, out.snapshot(), n, "disable must not move the gate")

	// The pre-disable ratio is remembered: re-commanding it is a no-op.
	require.NoError(t, c.SetRatio(ctx, 0.8, true))
	require.Len(t, out.snapshot(), n)
}

func TestIntermediateTargetRetainsDiscreteState(t *testing.T) {
	c, _ := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetState(ctx, StateClose, true))
	require.Equal(t, StateClose, c.State())

	require.NoError(t, c.SetRatio(ctx, 0.5, true))
	require.Equal(t, StateClose, c.State())

	require.NoError(t, c.SetState(ctx, StateOpen, true))
	require.Equal(t, StateOpen, c.State())
}

func TestRatioClamped(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	require.NoError(t, c.SetRatio(context.Background(), 1.7, true))

	writes := out.snapshot()
	s0, s1 := Levels(DefaultConfig, 1.0)
	require.Equal(t, [2]uint16{s0, s1}, writes[len(writes)-1])
	require.Equal(t, StateClose, c.State())
}

func TestCommandsApplyInOrder(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetRatio(ctx, 1.0, true))
	require.NoError(t, c.SetRatio(ctx, 0.0, true))
	require.Equal(t, StateOpen, c.State())

	writes := out.snapshot()
	s0, s1 := Levels(DefaultConfig, 0.0)
	require.Equal(t, [2]uint16{s0, s1}, writes[len(writes)-1])
}

func TestSetConfigAffectsNextMove(t *testing.T) {
	c, out := startController(t, DefaultConfig)
	ctx := context.Background()
	require.NoError(t, c.SetRatio(ctx, 1.0, true))

	cfg := c.Config()
	cfg.Shutter0CloseDuty = 0.10
	c.SetConfig(cfg)
	require.Equal(t, 0.10, c.Config().Shutter0CloseDuty)

	require.NoError(t, c.SetRatio(ctx, 0.0, true))
	require.NoError(t, c.SetRatio(ctx, 1.0, true))
	writes := out.snapshot()
	s0, _ := Levels(cfg, 1.0)
	require.Equal(t, s0, writes[len(writes)-1][0])
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Disabled", StateDisabled.String())
	require.Equal(t, "Close", StateClose.String())
	require.Equal(t, "Open", StateOpen.String())
	require.Equal(t, "Unknown", State(7).String())
}
