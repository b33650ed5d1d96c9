package pong

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongarena/internal/geometry"
)

func startingBars(r Rules) [2]geometry.Rectangle {
	return [2]geometry.Rectangle{r.startingBar(Left), r.startingBar(Right)}
}

func TestResolveWallReflection(t *testing.T) {
	rules := DefaultRules()
	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: 50, Y: 0},
		Velocity: geometry.Vector2d{X: 0, Y: -5},
	}, startingBars(rules), rules.Dt())

	assert.True(t, res.WallContact)
	assert.False(t, res.PaddleContact)
	assert.False(t, res.Scored)
	assert.Equal(t, geometry.Vector2d{X: 0, Y: 5}, res.Ball.Velocity)
	assert.Equal(t, geometry.Vector2d{X: 50, Y: 0}, res.Ball.Position)
}

func TestResolveBottomWall(t *testing.T) {
	rules := DefaultRules()
	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: 30, Y: rules.ArenaHeight - 0.01},
		Velocity: geometry.Vector2d{X: 8, Y: 20},
	}, startingBars(rules), rules.Dt())

	assert.True(t, res.WallContact)
	assert.Equal(t, rules.ArenaHeight, res.Ball.Position.Y)
	assert.Equal(t, -20.0, res.Ball.Velocity.Y)
	assert.Equal(t, 8.0, res.Ball.Velocity.X)
}

func TestResolveFreeMotion(t *testing.T) {
	rules := DefaultRules()
	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: 50, Y: 25},
		Velocity: geometry.Vector2d{X: 64, Y: -32},
	}, startingBars(rules), rules.Dt())

	assert.False(t, res.WallContact)
	assert.False(t, res.PaddleContact)
	assert.False(t, res.Scored)
	assert.InDelta(t, 51, res.Ball.Position.X, 1e-9)
	assert.InDelta(t, 24.5, res.Ball.Position.Y, 1e-9)
}

func TestResolvePaddleCentreHit(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)
	face := bars[Right].TopLeft.X
	centre := bars[Right].Center().Y

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: face - rules.BallRadius - 0.2, Y: centre},
		Velocity: geometry.Vector2d{X: 40, Y: 0},
	}, bars, rules.Dt())

	require.True(t, res.PaddleContact)
	assert.Equal(t, Right, res.Hitter)
	assert.False(t, res.Scored)
	assert.InDelta(t, -40*rules.SpeedUp, res.Ball.Velocity.X, 1e-9)
	assert.InDelta(t, 0, res.Ball.Velocity.Y, 1e-9)
	assert.Equal(t, face-rules.BallRadius, res.Ball.Position.X)
}

func TestResolvePaddleEdgeDeflects(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)
	face := bars[Left].BottomRight.X
	bottom := bars[Left].BottomRight.Y

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: face + rules.BallRadius + 0.2, Y: bottom},
		Velocity: geometry.Vector2d{X: -40, Y: 0},
	}, bars, rules.Dt())

	require.True(t, res.PaddleContact)
	assert.Equal(t, Left, res.Hitter)
	speed := 40 * rules.SpeedUp
	assert.InDelta(t, speed*math.Cos(rules.MaxBounceAngle), res.Ball.Velocity.X, 1e-9)
	assert.InDelta(t, speed*math.Sin(rules.MaxBounceAngle), res.Ball.Velocity.Y, 1e-9)
}

func TestResolveTouchingPaddleEdgeCountsAsContact(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)
	face := bars[Left].BottomRight.X
	// The top of the ball's extent sits exactly on the bottom corner of the paddle.
	y := bars[Left].BottomRight.Y + rules.BallRadius

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: face + rules.BallRadius, Y: y},
		Velocity: geometry.Vector2d{X: -40, Y: 0},
	}, bars, rules.Dt())

	assert.True(t, res.PaddleContact)
	assert.False(t, res.Scored)
}

func TestResolveMissJustBelowPaddle(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)
	face := bars[Left].BottomRight.X
	y := bars[Left].BottomRight.Y + rules.BallRadius + 0.001

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: face + rules.BallRadius, Y: y},
		Velocity: geometry.Vector2d{X: -40, Y: 0},
	}, bars, rules.Dt())

	assert.False(t, res.PaddleContact)
}

func TestResolveWallAndPaddleSameTick(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)
	// Move the left paddle to the top wall.
	bars[Left] = bars[Left].Translate(geometry.Vector2d{Y: -bars[Left].TopLeft.Y})
	face := bars[Left].BottomRight.X

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: face + rules.BallRadius + 0.1, Y: 0.1},
		Velocity: geometry.Vector2d{X: -30, Y: -30},
	}, bars, rules.Dt())

	assert.True(t, res.WallContact)
	require.True(t, res.PaddleContact)
	assert.Equal(t, 0.0, res.Ball.Position.Y)
	assert.Greater(t, res.Ball.Velocity.X, 0.0)
}

func TestResolveScoring(t *testing.T) {
	rules := DefaultRules()
	bars := startingBars(rules)

	res := Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: rules.ArenaWidth - 0.1, Y: 2},
		Velocity: geometry.Vector2d{X: 40, Y: 0},
	}, bars, rules.Dt())
	require.True(t, res.Scored)
	assert.Equal(t, Left, res.Scorer)

	res = Resolver{Rules: rules}.Resolve(Ball{
		Position: geometry.Vector2d{X: 0.1, Y: 2},
		Velocity: geometry.Vector2d{X: -40, Y: 0},
	}, bars, rules.Dt())
	require.True(t, res.Scored)
	assert.Equal(t, Right, res.Scorer)
}

func TestResolveDegenerateInput(t *testing.T) {
	rules := DefaultRules()
	flat := [2]geometry.Rectangle{
		geometry.NewRectangle(geometry.Vector2d{X: 2, Y: 20}, 1, 0),
		geometry.NewRectangle(geometry.Vector2d{X: 97, Y: 20}, 0, 10),
	}

	assert.NotPanics(t, func() {
		res := Resolver{Rules: rules}.Resolve(Ball{
			Position: geometry.Vector2d{X: 3.6, Y: 20},
			Velocity: geometry.Vector2d{X: -40, Y: 0},
		}, flat, rules.Dt())
		assert.False(t, res.PaddleContact)
	})

	assert.NotPanics(t, func() {
		still := Ball{Position: geometry.Vector2d{X: 3.5, Y: 25}}
		res := Resolver{Rules: rules}.Resolve(still, startingBars(rules), rules.Dt())
		assert.False(t, res.PaddleContact)
		assert.Equal(t, still, res.Ball)
	})

	res := Resolver{Rules: rules}.Resolve(Ball{Velocity: geometry.Vector2d{X: 1}}, startingBars(rules), 0)
	assert.Equal(t, Ball{Velocity: geometry.Vector2d{X: 1}}, res.Ball)
}
