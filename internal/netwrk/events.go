package netwrk

import (
	"pongarena/internal/pong"
)

// Inbound event types.
const (
	EventQueueEntry = "match_making.entry"
	EventQueueLeave = "match_making.leave"
	EventInput      = "match.input"
	EventJoin       = "match.join"
	EventHello      = "hello"
)

// Outbound event types.
const (
	EventMatchFound        = "match_found"
	EventState             = "match.state"
	EventOver              = "match.over"
	EventMatchmakingFailed = "match_making.failed"
	EventWaiting           = "match_making.waiting"
	EventError             = "error"
)

// Inbound is a decoded client event. Only the fields of its Type are set.
type Inbound struct {
	Type      string
	QueueKind string
	MatchID   string
	Input     pong.PlayerInput
	Token     string
}

type MatchFound struct {
	MatchID   string    `json:"matchId"`
	QueueKind string    `json:"queueKind"`
	Label     string    `json:"label"`
	Side      pong.Side `json:"side"`
	Opponent  string    `json:"opponent"`
}

type MatchOver struct {
	WinnerID string `json:"winnerId,omitempty"`
	Reason   string `json:"reason"`
	Score    [2]int `json:"score"`
}

type Failed struct {
	Reason string `json:"reason"`
}

type Waiting struct {
	QueueKind string `json:"queueKind"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Outbound is a server event. Exactly one payload matching Type is set.
type Outbound struct {
	Type       string
	MatchFound *MatchFound
	State      *pong.GameState
	Over       *MatchOver
	Failed     *Failed
	Waiting    *Waiting
	Error      *ErrorMessage
}

func MatchFoundEvent(m MatchFound) Outbound {
	return Outbound{Type: EventMatchFound, MatchFound: &m}
}

func StateEvent(s pong.GameState) Outbound {
	return Outbound{Type: EventState, State: &s}
}

func OverEvent(o MatchOver) Outbound {
	return Outbound{Type: EventOver, Over: &o}
}

func FailedEvent(reason string) Outbound {
	return Outbound{Type: EventMatchmakingFailed, Failed: &Failed{Reason: reason}}
}

func WaitingEvent(kind string) Outbound {
	return Outbound{Type: EventWaiting, Waiting: &Waiting{QueueKind: kind}}
}

func ErrorEvent(err error) Outbound {
	return Outbound{Type: EventError, Error: &ErrorMessage{Message: err.Error()}}
}

func (o Outbound) payload() any {
	switch {
	case o.MatchFound != nil:
		return o.MatchFound
	case o.State != nil:
		return o.State
	case o.Over != nil:
		return o.Over
	case o.Failed != nil:
		return o.Failed
	case o.Waiting != nil:
		return o.Waiting
	case o.Error != nil:
		return o.Error
	}
	return nil
}
