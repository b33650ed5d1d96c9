package pong

import (
	"errors"
	"fmt"
)

var (
	ErrMatchFormationTimeout = errors.New("players did not join the match in time")
	ErrPlayerDisconnected    = errors.New("player disconnected")
	ErrLoopClosed            = errors.New("match loop is closed")
)

// InvalidInputError is returned for input that cannot be applied. The match
// keeps running; the input is dropped.
type InvalidInputError struct {
	PlayerID string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	if e.PlayerID == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input from %s: %s", e.PlayerID, e.Reason)
}
