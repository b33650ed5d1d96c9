package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectOpened = "pong.match.opened"
	SubjectClosed = "pong.match.closed"
)

// Publisher is the part of *nats.Conn the recorder needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ConnectNATS dials the broker and keeps reconnecting for as long as the
// process lives.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("pongarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.Any("error", err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

// NATS publishes lifecycle records as JSON events.
type NATS struct {
	Conn Publisher
}

func (n NATS) MatchOpened(_ context.Context, o Opened) error {
	return n.publish(SubjectOpened, o)
}

func (n NATS) MatchClosed(_ context.Context, c Closed) error {
	return n.publish(SubjectClosed, c)
}

func (n NATS) publish(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := n.Conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
