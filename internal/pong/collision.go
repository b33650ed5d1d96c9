package pong

import (
	"math"

	"pongarena/internal/geometry"
)

// Resolution is the outcome of one tick of ball motion.
type Resolution struct {
	Ball          Ball
	WallContact   bool
	PaddleContact bool
	// Hitter is the side whose paddle was hit, valid when PaddleContact is set.
	Hitter Side
	Scored bool
	// Scorer is the side that won the point, valid when Scored is set.
	Scorer Side
}

type Resolver struct {
	Rules Rules
}

// Resolve moves the ball by one tick. Walls are tested before paddles and
// both act on the same velocity; a goal only counts when no paddle was hit.
// The ball in a scoring resolution is left where it crossed the goal line,
// serving again is up to the caller.
func (r Resolver) Resolve(ball Ball, bars [2]geometry.Rectangle, dt float64) Resolution {
	res := Resolution{Ball: ball}
	if dt <= 0 || math.IsNaN(dt) {
		return res
	}

	from := ball.Position
	vel := ball.Velocity
	to := from.Add(vel.Scale(dt))

	top, bottom := 0.0, r.Rules.ArenaHeight
	switch {
	case to.Y < top:
		vel.Y = -vel.Y
		to.Y = top
		res.WallContact = true
	case to.Y > bottom:
		vel.Y = -vel.Y
		to.Y = bottom
		res.WallContact = true
	}

	for i, bar := range bars {
		side := Side(i)
		hit, x, v := r.paddle(side, bar, from, to, vel)
		if !hit {
			continue
		}
		to.X = x
		vel = v
		res.PaddleContact = true
		res.Hitter = side
		break
	}

	res.Ball = Ball{Position: to, Velocity: vel}
	if res.PaddleContact {
		return res
	}

	switch {
	case to.X < 0:
		res.Scored = true
		res.Scorer = Right
	case to.X > r.Rules.ArenaWidth:
		res.Scored = true
		res.Scorer = Left
	}
	return res
}

// paddle checks the bar of one side against the ball moving from -> to.
// Only the edge facing the centre of the arena can be hit, and only by a ball
// travelling towards that side's goal.
func (r Resolver) paddle(side Side, bar geometry.Rectangle, from, to, vel geometry.Vector2d) (bool, float64, geometry.Vector2d) {
	if !bar.Valid() || bar.Degenerate() {
		return false, 0, vel
	}
	radius := r.Rules.BallRadius
	full := geometry.MakeFullRectangle(bar)

	var facing geometry.Edge
	var leadFrom, leadTo, faceX float64
	if side == Left {
		if vel.X >= 0 {
			return false, 0, vel
		}
		facing = geometry.EdgeRight
		faceX = geometry.EdgeOf(full, geometry.AxisX, facing).Lo
		leadFrom, leadTo = from.X-radius, to.X-radius
		if leadFrom < faceX || leadTo > faceX {
			return false, 0, vel
		}
	} else {
		if vel.X <= 0 {
			return false, 0, vel
		}
		facing = geometry.EdgeLeft
		faceX = geometry.EdgeOf(full, geometry.AxisX, facing).Lo
		leadFrom, leadTo = from.X+radius, to.X+radius
		if leadFrom > faceX || leadTo < faceX {
			return false, 0, vel
		}
	}

	edge := geometry.EdgeOf(full, geometry.AxisY, facing)
	extent := geometry.NewRange(to.Y-radius, to.Y+radius)
	if !geometry.RangesOverlap(extent, edge) {
		return false, 0, vel
	}

	half := (edge.Hi - edge.Lo) / 2
	offset := geometry.Clamp((to.Y-(edge.Lo+half))/half, -1, 1)
	angle := offset * r.Rules.MaxBounceAngle

	speed := vel.Length() * r.Rules.SpeedUp
	if r.Rules.MaxSpeed > 0 {
		speed = math.Min(speed, r.Rules.MaxSpeed)
	}

	dir := 1.0
	x := faceX + radius
	if side == Right {
		dir = -1
		x = faceX - radius
	}
	out := geometry.Vector2d{X: dir * speed * math.Cos(angle), Y: speed * math.Sin(angle)}
	return true, x, out
}
