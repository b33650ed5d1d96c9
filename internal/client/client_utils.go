package client

import (
	"log/slog"

	"pongarena/internal/netwrk"
	"pongarena/internal/pong"
)

// DeadZone is how far the ball may be off the paddle centre before the bot
// moves, so it does not jitter around a ball it already covers.
const DeadZone = 1.0

// Steer picks the input that moves the paddle of side towards the ball.
func Steer(s pong.GameState, side pong.Side, deadZone float64) pong.PlayerInput {
	centre := s.Players[side].Bar.Center().Y
	switch ball := s.Ball.Position.Y; {
	case ball < centre-deadZone:
		return pong.PlayerInput{Up: true}
	case ball > centre+deadZone:
		return pong.PlayerInput{Down: true}
	}
	return pong.PlayerInput{}
}

// HandleServerMessage logs what the server told us. State snapshots are too
// chatty for anything above debug.
func HandleServerMessage(log *slog.Logger, msg netwrk.Outbound) {
	switch msg.Type {
	case netwrk.EventWaiting:
		log.Info("waiting for an opponent", slog.String("queue_kind", msg.Waiting.QueueKind))
	case netwrk.EventMatchFound:
		log.Info("match found",
			slog.String("match_id", msg.MatchFound.MatchID),
			slog.String("label", msg.MatchFound.Label),
			slog.String("side", msg.MatchFound.Side.String()),
			slog.String("opponent", msg.MatchFound.Opponent))
	case netwrk.EventState:
		log.Debug("state", slog.Uint64("tick", msg.State.Tick), slog.Any("score", msg.State.Score()))
	case netwrk.EventOver:
		log.Info("match over",
			slog.String("winner_id", msg.Over.WinnerID),
			slog.String("reason", msg.Over.Reason),
			slog.Any("score", msg.Over.Score))
	case netwrk.EventMatchmakingFailed:
		log.Warn("matchmaking failed", slog.String("reason", msg.Failed.Reason))
	case netwrk.EventError:
		log.Warn("server error", slog.String("message", msg.Error.Message))
	default:
		log.Debug("unhandled server message", slog.String("type", msg.Type))
	}
}
