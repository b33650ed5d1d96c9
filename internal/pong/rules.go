package pong

import (
	"errors"
	"fmt"
	"math"
	"time"

	"pongarena/internal/geometry"
)

// Rules are the balance constants of a match. The server builds one Rules
// value at start up and every match shares it.
type Rules struct {
	TickRate     int `yaml:"tick_rate"`
	WinningScore int `yaml:"winning_score"`

	ArenaWidth  float64 `yaml:"arena_width"`
	ArenaHeight float64 `yaml:"arena_height"`

	PaddleWidth  float64 `yaml:"paddle_width"`
	PaddleHeight float64 `yaml:"paddle_height"`
	PaddleInset  float64 `yaml:"paddle_inset"`
	PaddleSpeed  float64 `yaml:"paddle_speed"`

	BallRadius float64 `yaml:"ball_radius"`
	ServeSpeed float64 `yaml:"serve_speed"`
	// ServeAngle bounds the serve direction, in radians either side of the x axis.
	ServeAngle float64 `yaml:"serve_angle"`
	SpeedUp    float64 `yaml:"speed_up"`
	MaxSpeed   float64 `yaml:"max_speed"`
	// MaxBounceAngle is the deflection when the ball hits the very end of a paddle.
	MaxBounceAngle float64 `yaml:"max_bounce_angle"`

	FormationGrace time.Duration `yaml:"formation_grace"`
}

func DefaultRules() Rules {
	return Rules{
		TickRate:       64,
		WinningScore:   10,
		ArenaWidth:     100,
		ArenaHeight:    50,
		PaddleWidth:    1,
		PaddleHeight:   10,
		PaddleInset:    2,
		PaddleSpeed:    60,
		BallRadius:     0.5,
		ServeSpeed:     40,
		ServeAngle:     math.Pi / 6,
		SpeedUp:        1.05,
		MaxSpeed:       90,
		MaxBounceAngle: math.Pi / 3,
		FormationGrace: 10 * time.Second,
	}
}

func (r Rules) Validate() error {
	var errs []error
	if r.TickRate <= 0 || r.TickInterval() <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive and at most one per nanosecond, got %d", r.TickRate))
	}
	if r.WinningScore <= 0 {
		errs = append(errs, fmt.Errorf("winning score must be positive, got %d", r.WinningScore))
	}
	if r.ArenaWidth <= 0 || r.ArenaHeight <= 0 {
		errs = append(errs, fmt.Errorf("arena must have a positive size, got %vx%v", r.ArenaWidth, r.ArenaHeight))
	}
	if r.PaddleHeight > r.ArenaHeight {
		errs = append(errs, errors.New("paddle is taller than the arena"))
	}
	if r.PaddleInset+r.PaddleWidth >= r.ArenaWidth/2 {
		errs = append(errs, errors.New("paddles overlap the centre line"))
	}
	if r.PaddleSpeed < 0 {
		errs = append(errs, fmt.Errorf("paddle speed must not be negative, got %v", r.PaddleSpeed))
	}
	if r.BallRadius < 0 {
		errs = append(errs, fmt.Errorf("ball radius must not be negative, got %v", r.BallRadius))
	}
	if r.ServeSpeed <= 0 || r.MaxSpeed < r.ServeSpeed {
		errs = append(errs, fmt.Errorf("ball speed envelope is invalid: serve %v max %v", r.ServeSpeed, r.MaxSpeed))
	}
	if r.SpeedUp <= 0 {
		errs = append(errs, fmt.Errorf("speed up must be positive, got %v", r.SpeedUp))
	}
	// At a right angle the ball never makes progress towards a goal.
	if r.ServeAngle < 0 || r.ServeAngle >= math.Pi/2 {
		errs = append(errs, fmt.Errorf("serve angle must be in [0, pi/2), got %v", r.ServeAngle))
	}
	if r.MaxBounceAngle < 0 || r.MaxBounceAngle >= math.Pi/2 {
		errs = append(errs, fmt.Errorf("max bounce angle must be in [0, pi/2), got %v", r.MaxBounceAngle))
	}
	if r.FormationGrace <= 0 {
		errs = append(errs, errors.New("formation grace must be positive"))
	}
	return errors.Join(errs...)
}

func (r Rules) TickInterval() time.Duration {
	if r.TickRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(r.TickRate)
}

// Dt is the simulated time of one tick in seconds.
func (r Rules) Dt() float64 {
	return 1 / float64(r.TickRate)
}

func (r Rules) center() geometry.Vector2d {
	return geometry.Vector2d{X: r.ArenaWidth / 2, Y: r.ArenaHeight / 2}
}

// startingBar places a paddle vertically centred next to its goal line.
func (r Rules) startingBar(side Side) geometry.Rectangle {
	x := r.PaddleInset
	if side == Right {
		x = r.ArenaWidth - r.PaddleInset - r.PaddleWidth
	}
	y := (r.ArenaHeight - r.PaddleHeight) / 2
	return geometry.NewRectangle(geometry.Vector2d{X: x, Y: y}, r.PaddleWidth, r.PaddleHeight)
}
