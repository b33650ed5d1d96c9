package pong

import (
	"fmt"

	"pongarena/internal/geometry"
)

type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

func (s Side) Opponent() Side {
	if s == Left {
		return Right
	}
	return Left
}

func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "left":
		*s = Left
	case "right":
		*s = Right
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// PlayerInput is the latest input sample for a player. A newer sample
// replaces the older one; nothing is queued.
type PlayerInput struct {
	Up   bool `json:"up"`
	Down bool `json:"down"`
}

type Player struct {
	ID    string             `json:"id"`
	Side  Side               `json:"side"`
	Score int                `json:"score"`
	Bar   geometry.Rectangle `json:"bar"`
	Input PlayerInput        `json:"-"`
}

type Ball struct {
	Position geometry.Vector2d `json:"position"`
	Velocity geometry.Vector2d `json:"velocity"`
}

// GameState is the snapshot broadcast every tick. Players[0] is always the
// left player and Players[1] the right one. It only holds values, so a copy
// is safe to hand to other goroutines.
type GameState struct {
	Tick    uint64    `json:"tick"`
	Ball    Ball      `json:"ball"`
	Players [2]Player `json:"players"`
}

func (g GameState) Score() [2]int {
	return [2]int{g.Players[Left].Score, g.Players[Right].Score}
}

// PlayerSide returns the side of the given player id.
func (g GameState) PlayerSide(playerID string) (Side, bool) {
	for i, p := range g.Players {
		if p.ID == playerID {
			return Side(i), true
		}
	}
	return Left, false
}
