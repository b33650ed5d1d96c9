// Package client is a headless player. It queues, plays by following the
// ball and reports how its matches went.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"pongarena/internal/netwrk"
	"pongarena/internal/pong"
)

// Transport is the client end of a server connection. *netwrk.Conn is the
// one used outside tests.
type Transport interface {
	Send(msg netwrk.Inbound) error
	Receive() (netwrk.Outbound, error)
	Close() error
}

type Bot struct {
	Queue string
	// Matches is how many matches to finish before Play returns.
	Matches  int
	DeadZone float64
	// OnState sees every snapshot of the bot's own matches.
	OnState func(pong.GameState)
	Log     *slog.Logger
}

// Report counts the matches a bot took part in.
type Report struct {
	Played   int
	Won      int
	Failed   int
	LastOver *netwrk.MatchOver
}

// Play queues and plays until enough matches are over, the server goes
// away or ctx is done. Server errors are only logged; a refused queue entry
// leaves the bot waiting until ctx is done. The transport is closed on return.
func (b *Bot) Play(ctx context.Context, t Transport) (Report, error) {
	log := b.Log
	if log == nil {
		log = slog.Default()
	}
	want := b.Matches
	if want <= 0 {
		want = 1
	}
	deadZone := b.DeadZone
	if deadZone <= 0 {
		deadZone = DeadZone
	}

	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()
	defer t.Close()

	var (
		report  Report
		side    pong.Side
		playing bool
		last    pong.PlayerInput
		// The server names us; the state snapshots tell us which id it picked.
		me string
	)
	enter := func() error {
		return t.Send(netwrk.Inbound{Type: netwrk.EventQueueEntry, QueueKind: b.Queue})
	}
	if err := enter(); err != nil {
		return report, fmt.Errorf("entering queue: %w", err)
	}

	for report.Played+report.Failed < want {
		msg, err := t.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			return report, fmt.Errorf("receiving: %w", err)
		}
		HandleServerMessage(log, msg)

		switch {
		case msg.Type == netwrk.EventMatchFound && msg.MatchFound != nil:
			side, playing, last = msg.MatchFound.Side, true, pong.PlayerInput{}
		case msg.Type == netwrk.EventState && msg.State != nil && playing:
			me = msg.State.Players[side].ID
			if b.OnState != nil {
				b.OnState(*msg.State)
			}
			in := Steer(*msg.State, side, deadZone)
			if in == last {
				continue
			}
			if err := t.Send(netwrk.Inbound{Type: netwrk.EventInput, Input: in}); err != nil {
				return report, fmt.Errorf("sending input: %w", err)
			}
			last = in
		case msg.Type == netwrk.EventOver && msg.Over != nil:
			playing = false
			report.Played++
			report.LastOver = msg.Over
			if me != "" && msg.Over.WinnerID == me {
				report.Won++
			}
			if report.Played+report.Failed < want {
				if err := enter(); err != nil {
					return report, fmt.Errorf("entering queue: %w", err)
				}
			}
		case msg.Type == netwrk.EventMatchmakingFailed:
			playing = false
			report.Failed++
			if report.Played+report.Failed < want {
				if err := enter(); err != nil {
					return report, fmt.Errorf("entering queue: %w", err)
				}
			}
		}
	}
	return report, nil
}
