package lobby

import (
	"errors"
	"fmt"
	"strings"
)

type QueueKind string

const (
	Rank   QueueKind = "RANK"
	Casual QueueKind = "CASUAL"
)

// ParseQueueKind normalises user supplied queue names. Whether the kind is
// served is decided by the Matchmaker.
func ParseQueueKind(s string) (QueueKind, error) {
	k := strings.ToUpper(strings.TrimSpace(s))
	if k == "" {
		return "", fmt.Errorf("%w: empty queue kind", ErrUnknownQueue)
	}
	return QueueKind(k), nil
}

var (
	ErrUnknownQueue   = errors.New("unknown queue kind")
	ErrAlreadyInMatch = errors.New("player is already in a match")
	ErrClosed         = errors.New("matchmaker is closed")
)

// Pairing is produced once two waiting players are taken off a queue. The
// players are eligible for no other pairing until they are released.
type Pairing struct {
	MatchID string
	Kind    QueueKind
	Players [2]string
}

type op int

const (
	opEnter op = iota
	opLeave
	opSize
)

type command struct {
	op       op
	playerID string
	reply    chan reply
}

type reply struct {
	pairing *Pairing
	size    int
	err     error
}
