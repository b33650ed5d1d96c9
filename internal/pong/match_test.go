package pong

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongarena/internal/geometry"
)

var testPlayers = [2]string{"alice", "bob"}

func TestNewMatchServesFromCentre(t *testing.T) {
	rules := DefaultRules()
	m := NewMatch("m1", "RANK", testPlayers, rules, 7)

	s := m.Snapshot()
	assert.Equal(t, Forming, m.Status)
	assert.Equal(t, rules.center(), s.Ball.Position)
	assert.InDelta(t, rules.ServeSpeed, s.Ball.Velocity.Length(), 1e-9)
	assert.LessOrEqual(t, math.Abs(s.Ball.Velocity.Y), rules.ServeSpeed*math.Sin(rules.ServeAngle)+1e-9)
	assert.Equal(t, "alice", s.Players[Left].ID)
	assert.Equal(t, Right, s.Players[Right].Side)
	assert.Equal(t, [2]int{0, 0}, s.Score())
}

func TestApplyInputUnknownPlayer(t *testing.T) {
	m := NewMatch("m1", "RANK", testPlayers, DefaultRules(), 1)
	before := m.Snapshot()

	err := m.ApplyInput("mallory", PlayerInput{Up: true})
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "mallory", invalid.PlayerID)
	assert.Equal(t, before, m.Snapshot())
}

func TestPaddleStaysInsideArena(t *testing.T) {
	rules := DefaultRules()
	m := NewMatch("m1", "RANK", testPlayers, rules, 1)
	require.NoError(t, m.ApplyInput("alice", PlayerInput{Up: true}))
	require.NoError(t, m.ApplyInput("bob", PlayerInput{Down: true}))

	for i := 0; i < rules.TickRate*3; i++ {
		m.Advance(rules.Dt())
	}

	s := m.Snapshot()
	assert.Equal(t, 0.0, s.Players[Left].Bar.TopLeft.Y)
	assert.Equal(t, rules.ArenaHeight, s.Players[Right].Bar.BottomRight.Y)
	assert.Equal(t, rules.PaddleHeight, s.Players[Left].Bar.Height())
}

func TestOpposingInputsCancel(t *testing.T) {
	rules := DefaultRules()
	m := NewMatch("m1", "RANK", testPlayers, rules, 1)
	start := m.Snapshot().Players[Left].Bar
	require.NoError(t, m.ApplyInput("alice", PlayerInput{Up: true, Down: true}))

	m.Advance(rules.Dt())
	assert.Equal(t, start, m.Snapshot().Players[Left].Bar)
}

func TestScoreIncrementsAndServesAgain(t *testing.T) {
	rules := DefaultRules()
	m := NewMatch("m1", "RANK", testPlayers, rules, 3)
	m.state.Ball = Ball{
		Position: geometry.Vector2d{X: rules.ArenaWidth - 0.1, Y: 2},
		Velocity: geometry.Vector2d{X: 40},
	}

	s := m.Advance(rules.Dt())
	assert.Equal(t, [2]int{1, 0}, s.Score())
	assert.Equal(t, rules.center(), s.Ball.Position)
	// The point goes to the left player, so the next serve heads right.
	assert.Greater(t, s.Ball.Velocity.X, 0.0)
	assert.InDelta(t, rules.ServeSpeed, s.Ball.Velocity.Length(), 1e-9)
	assert.Equal(t, uint64(1), s.Tick)

	_, won := m.Winner()
	assert.False(t, won)
}

func TestWinner(t *testing.T) {
	rules := DefaultRules()
	rules.WinningScore = 2
	m := NewMatch("m1", "RANK", testPlayers, rules, 3)

	for i := 0; i < 2; i++ {
		m.state.Ball = Ball{
			Position: geometry.Vector2d{X: 0.1, Y: 2},
			Velocity: geometry.Vector2d{X: -40},
		}
		m.Advance(rules.Dt())
	}

	p, ok := m.Winner()
	require.True(t, ok)
	assert.Equal(t, "bob", p.ID)
	assert.Equal(t, [2]int{0, 2}, m.Snapshot().Score())
}

func TestAdvanceIgnoresBadStep(t *testing.T) {
	m := NewMatch("m1", "RANK", testPlayers, DefaultRules(), 5)
	ball := m.Snapshot().Ball

	s := m.Advance(math.NaN())
	assert.Equal(t, ball, s.Ball)
	s = m.Advance(-1)
	assert.Equal(t, ball, s.Ball)
	assert.Equal(t, uint64(2), s.Tick)
}

func TestSameSeedSameMatch(t *testing.T) {
	rules := DefaultRules()
	a := NewMatch("a", "RANK", testPlayers, rules, 42)
	b := NewMatch("b", "RANK", testPlayers, rules, 42)

	inputs := []PlayerInput{{Up: true}, {}, {Down: true}, {Down: true}, {}}
	for i := 0; i < rules.TickRate*30; i++ {
		in := inputs[(i/17)%len(inputs)]
		other := inputs[(i/29)%len(inputs)]
		require.NoError(t, a.ApplyInput("alice", in))
		require.NoError(t, b.ApplyInput("alice", in))
		require.NoError(t, a.ApplyInput("bob", other))
		require.NoError(t, b.ApplyInput("bob", other))

		require.Equal(t, a.Advance(rules.Dt()), b.Advance(rules.Dt()), "tick %d", i)
	}
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	bad := DefaultRules()
	bad.TickRate = 0
	bad.PaddleHeight = bad.ArenaHeight + 1
	bad.FormationGrace = 0
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick rate")
	assert.Contains(t, err.Error(), "paddle is taller")
	assert.Contains(t, err.Error(), "formation grace")

	for name, tc := range map[string]struct {
		mutate func(*Rules)
		want   string
	}{
		"no speed up":           {func(r *Rules) { r.SpeedUp = 0 }, "speed up"},
		"vertical serve":        {func(r *Rules) { r.ServeAngle = math.Pi / 2 }, "serve angle"},
		"negative serve angle":  {func(r *Rules) { r.ServeAngle = -0.1 }, "serve angle"},
		"vertical bounce":       {func(r *Rules) { r.MaxBounceAngle = math.Pi / 2 }, "max bounce angle"},
		"backwards bounce":      {func(r *Rules) { r.MaxBounceAngle = 2 }, "max bounce angle"},
		"sub-nanosecond tick":   {func(r *Rules) { r.TickRate = 2_000_000_000 }, "tick rate"},
		"negative paddle speed": {func(r *Rules) { r.PaddleSpeed = -1 }, "paddle speed"},
		"negative ball radius":  {func(r *Rules) { r.BallRadius = -0.5 }, "ball radius"},
	} {
		t.Run(name, func(t *testing.T) {
			r := DefaultRules()
			tc.mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	still := DefaultRules()
	still.PaddleSpeed = 0
	still.BallRadius = 0
	still.ServeAngle = 0
	assert.NoError(t, still.Validate())
}

func TestSideText(t *testing.T) {
	b, err := Right.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "right", string(b))

	var s Side
	require.NoError(t, s.UnmarshalText([]byte("right")))
	assert.Equal(t, Right, s)
	assert.Error(t, s.UnmarshalText([]byte("middle")))
	assert.Equal(t, Left, Right.Opponent())
}
