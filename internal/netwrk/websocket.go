package netwrk

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pongarena/internal/pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// outbox is the buffered send side shared by all peers.
type outbox struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newOutbox() *outbox {
	return &outbox{send: make(chan []byte, sendBuffer), done: make(chan struct{})}
}

func (o *outbox) push(b []byte) error {
	select {
	case <-o.done:
		return ErrPeerClosed
	default:
	}
	select {
	case o.send <- b:
		return nil
	default:
		return ErrSlowPeer
	}
}

func (o *outbox) close() bool {
	closed := false
	o.once.Do(func() {
		close(o.done)
		closed = true
	})
	return closed
}

// WSPeer is a player connected over a websocket, speaking JSON text frames.
type WSPeer struct {
	id    string
	conn  *websocket.Conn
	codec Codec
	out   *outbox
	log   *slog.Logger
}

func NewWSPeer(conn *websocket.Conn, playerID string, logger *slog.Logger) *WSPeer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSPeer{
		id:    playerID,
		conn:  conn,
		codec: JSONCodec{},
		out:   newOutbox(),
		log:   logger.With(slog.String("player_id", playerID), slog.String("transport", "websocket")),
	}
}

func (p *WSPeer) ID() string { return p.id }

func (p *WSPeer) Send(msg Outbound) error {
	b, err := p.codec.EncodeOutbound(msg)
	if err != nil {
		return err
	}
	return p.out.push(b)
}

// Close flushes what is queued and closes the connection. It is safe to call
// more than once.
func (p *WSPeer) Close() error {
	p.out.close()
	return nil
}

// Run pumps the connection until it fails or the peer is closed. Decoded
// events go to dispatch on the calling goroutine; malformed ones are answered
// with an error event and dropped.
func (p *WSPeer) Run(dispatch func(Inbound)) {
	go p.writePump()
	defer p.Close()

	p.conn.SetReadLimit(maxMessageSize)
	if err := p.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		p.log.Error("failed to set read deadline", slog.Any("error", err))
	}
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.log.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		in, err := p.codec.DecodeInbound(data)
		if err != nil {
			p.reject(err)
			continue
		}
		dispatch(in)
	}
}

func (p *WSPeer) reject(err error) {
	var invalid *pong.InvalidInputError
	if errors.As(err, &invalid) {
		invalid.PlayerID = p.id
	}
	p.log.Debug("dropping inbound message", slog.Any("error", err))
	if err := p.Send(ErrorEvent(err)); err != nil {
		p.log.Debug("could not report error", slog.Any("error", err))
	}
}

func (p *WSPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.out.close()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.out.done:
			p.flush()
			return
		case msg := <-p.out.send:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				p.log.Debug("websocket write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (p *WSPeer) flush() {
	_ = p.conn.SetWriteDeadline(time.Now().Add(time.Second))
	for {
		select {
		case msg := <-p.out.send:
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
