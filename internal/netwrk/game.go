package netwrk

import (
	"log/slog"

	"pongarena/internal/pong"
)

// Broadcaster delivers match loop output through the hub. Snapshots go to the
// match room only; an aborted match is reported to each player's own room
// since one of them may never have joined the match room.
type Broadcaster struct {
	Hub *Hub
	Log *slog.Logger
}

func (b *Broadcaster) State(matchID string, s pong.GameState) {
	b.Hub.Publish(MatchRoom(matchID), StateEvent(s))
}

func (b *Broadcaster) Over(matchID string, res pong.Result) {
	if res.Reason == pong.ReasonAborted {
		reason := "matchmaking failed"
		if res.Err != nil {
			reason += ": " + res.Err.Error()
		}
		for _, id := range res.Players {
			b.Hub.Publish(UserRoom(id), FailedEvent(reason))
		}
		return
	}

	n := b.Hub.Publish(MatchRoom(matchID), OverEvent(MatchOver{
		WinnerID: res.WinnerID,
		Reason:   string(res.Reason),
		Score:    res.Score,
	}))
	if b.Log != nil {
		b.Log.Debug("match result delivered", slog.String("match_id", matchID), slog.Int("peers", n))
	}
}

func (b *Broadcaster) TearDown(matchID string) {
	b.Hub.TearDown(MatchRoom(matchID))
}
