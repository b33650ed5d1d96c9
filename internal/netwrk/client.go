package netwrk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"pongarena/internal/pong"
)

// TCPPeer is a player connected over raw TCP with length prefixed protobuf
// frames. The first frame of a connection is a hello carrying the token; it
// is read with ReadHello before the peer is built.
type TCPPeer struct {
	id     string
	conn   net.Conn
	frames *FrameReader
	codec  Codec
	out    *outbox
	log    *slog.Logger
}

// ReadHello reads the handshake frame of a new connection.
func ReadHello(conn net.Conn, frames *FrameReader, timeout time.Duration) (Inbound, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Inbound{}, err
	}
	defer conn.SetReadDeadline(time.Time{})

	b, err := frames.ReadFrame()
	if err != nil {
		return Inbound{}, fmt.Errorf("read hello: %w", err)
	}
	in, err := ProtoCodec{}.DecodeInbound(b)
	if err != nil {
		return Inbound{}, err
	}
	if in.Type != EventHello {
		return Inbound{}, &pong.InvalidInputError{Reason: fmt.Sprintf("expected %s, got %q", EventHello, in.Type)}
	}
	return in, nil
}

func NewTCPPeer(conn net.Conn, frames *FrameReader, playerID string, logger *slog.Logger) *TCPPeer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TCPPeer{
		id:     playerID,
		conn:   conn,
		frames: frames,
		codec:  ProtoCodec{},
		out:    newOutbox(),
		log:    logger.With(slog.String("player_id", playerID), slog.String("transport", "tcp")),
	}
}

func (p *TCPPeer) ID() string { return p.id }

func (p *TCPPeer) Send(msg Outbound) error {
	b, err := p.codec.EncodeOutbound(msg)
	if err != nil {
		return err
	}
	return p.out.push(b)
}

func (p *TCPPeer) Close() error {
	p.out.close()
	return nil
}

// Run reads frames until the connection fails or the peer is closed.
func (p *TCPPeer) Run(dispatch func(Inbound)) {
	go p.writeLoop()
	defer p.Close()

	for {
		b, err := p.frames.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				p.log.Warn("tcp read failed", slog.Any("error", err))
			}
			return
		}
		in, err := p.codec.DecodeInbound(b)
		if err != nil {
			var invalid *pong.InvalidInputError
			if errors.As(err, &invalid) {
				invalid.PlayerID = p.id
			}
			p.log.Debug("dropping inbound message", slog.Any("error", err))
			_ = p.Send(ErrorEvent(err))
			continue
		}
		dispatch(in)
	}
}

func (p *TCPPeer) writeLoop() {
	defer func() {
		p.out.close()
		p.conn.Close()
	}()
	for {
		select {
		case <-p.out.done:
			for {
				select {
				case b := <-p.out.send:
					if err := p.write(b); err != nil {
						return
					}
				default:
					return
				}
			}
		case b := <-p.out.send:
			if err := p.write(b); err != nil {
				p.log.Debug("tcp write failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (p *TCPPeer) write(b []byte) error {
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return WriteFrame(p.conn, b)
}

// Conn is the client side of a TCP connection.
type Conn struct {
	conn   net.Conn
	frames *FrameReader
	codec  ProtoCodec
	mu     sync.Mutex
}

// Dial connects to a TCP server and says hello with the given token.
func Dial(ctx context.Context, addr, token string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Conn{conn: nc, frames: NewFrameReader(nc)}
	if err := c.Send(Inbound{Type: EventHello, Token: token}); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) Send(msg Inbound) error {
	b, err := c.codec.EncodeInbound(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteFrame(c.conn, b)
}

// Receive blocks for the next server event.
func (c *Conn) Receive() (Outbound, error) {
	b, err := c.frames.ReadFrame()
	if err != nil {
		return Outbound{}, err
	}
	return c.codec.DecodeOutbound(b)
}

func (c *Conn) Close() error {
	return c.conn.Close()
}
