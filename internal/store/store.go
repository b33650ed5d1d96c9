// Package store records match lifecycles outside the simulation. A failed
// write is reported to the caller and never changes a match outcome.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Opened struct {
	MatchID   string    `json:"match_id"`
	QueueKind string    `json:"queue_kind"`
	Players   [2]string `json:"players"`
	BeginDate time.Time `json:"begin_date"`
}

type Closed struct {
	MatchID  string    `json:"match_id"`
	EndDate  time.Time `json:"end_date"`
	WinnerID string    `json:"winner_id,omitempty"`
	Reason   string    `json:"reason"`
	Score    [2]int    `json:"score"`
}

type Recorder interface {
	MatchOpened(ctx context.Context, o Opened) error
	MatchClosed(ctx context.Context, c Closed) error
}

// Log writes lifecycle records to a logger. It is the recorder used when no
// database or broker is configured.
type Log struct {
	Logger *slog.Logger
}

func (l Log) logger() *slog.Logger {
	if l.Logger == nil {
		return slog.Default()
	}
	return l.Logger
}

func (l Log) MatchOpened(ctx context.Context, o Opened) error {
	l.logger().InfoContext(ctx, "match opened",
		slog.String("match_id", o.MatchID),
		slog.String("queue_kind", o.QueueKind),
		slog.Any("players", o.Players),
		slog.Time("begin_date", o.BeginDate))
	return nil
}

func (l Log) MatchClosed(ctx context.Context, c Closed) error {
	l.logger().InfoContext(ctx, "match closed",
		slog.String("match_id", c.MatchID),
		slog.String("winner_id", c.WinnerID),
		slog.String("reason", c.Reason),
		slog.Any("score", c.Score),
		slog.Time("end_date", c.EndDate))
	return nil
}

// Multi hands every record to all recorders, even when one of them fails.
type Multi []Recorder

func (m Multi) MatchOpened(ctx context.Context, o Opened) error {
	var errs []error
	for _, r := range m {
		if err := r.MatchOpened(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) MatchClosed(ctx context.Context, c Closed) error {
	var errs []error
	for _, r := range m {
		if err := r.MatchClosed(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
