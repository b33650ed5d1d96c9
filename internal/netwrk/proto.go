package netwrk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"pongarena/internal/geometry"
	"pongarena/internal/pong"
)

// Field numbers of the Frame message. Inbound and outbound frames share the
// type field and use disjoint ranges for everything else.
//
//	message Frame {
//	  string type = 1;
//	  string queue_kind = 2;
//	  string match_id = 3;
//	  bool up = 4;
//	  bool down = 5;
//	  string token = 6;
//	  MatchFound match_found = 10;
//	  GameState state = 11;
//	  MatchOver over = 12;
//	  string reason = 13;
//	  string message = 14;
//	}
const (
	fieldType       protowire.Number = 1
	fieldQueueKind  protowire.Number = 2
	fieldMatchID    protowire.Number = 3
	fieldUp         protowire.Number = 4
	fieldDown       protowire.Number = 5
	fieldToken      protowire.Number = 6
	fieldMatchFound protowire.Number = 10
	fieldState      protowire.Number = 11
	fieldOver       protowire.Number = 12
	fieldReason     protowire.Number = 13
	fieldMessage    protowire.Number = 14
)

const MaxFrameSize = 1 << 16

var (
	ErrFrameTooLarge = errors.New("frame too large")
	errWireType      = errors.New("unexpected wire type")
)

// ProtoCodec speaks the protobuf wire format used by TCP clients.
type ProtoCodec struct{}

func (ProtoCodec) EncodeInbound(msg Inbound) ([]byte, error) {
	b := appendString(nil, fieldType, msg.Type)
	switch msg.Type {
	case EventQueueEntry:
		b = appendString(b, fieldQueueKind, msg.QueueKind)
	case EventJoin:
		b = appendString(b, fieldMatchID, msg.MatchID)
	case EventInput:
		b = appendBool(b, fieldUp, msg.Input.Up)
		b = appendBool(b, fieldDown, msg.Input.Down)
	case EventHello:
		b = appendString(b, fieldToken, msg.Token)
	}
	return b, nil
}

func (ProtoCodec) DecodeInbound(b []byte) (Inbound, error) {
	var in Inbound
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldType:
			return consumeString(typ, b, &in.Type)
		case fieldQueueKind:
			return consumeString(typ, b, &in.QueueKind)
		case fieldMatchID:
			return consumeString(typ, b, &in.MatchID)
		case fieldUp:
			return consumeBool(typ, b, &in.Input.Up)
		case fieldDown:
			return consumeBool(typ, b, &in.Input.Down)
		case fieldToken:
			return consumeString(typ, b, &in.Token)
		}
		return 0, nil
	})
	if err != nil {
		return Inbound{}, invalid("malformed frame: %v", err)
	}
	switch in.Type {
	case EventQueueEntry, EventQueueLeave, EventInput, EventJoin, EventHello:
	default:
		return Inbound{}, invalid("unknown event type %q", in.Type)
	}
	return in, validate(in)
}

func (ProtoCodec) EncodeOutbound(msg Outbound) ([]byte, error) {
	b := appendString(nil, fieldType, msg.Type)
	switch {
	case msg.MatchFound != nil:
		m := msg.MatchFound
		var sub []byte
		sub = appendString(sub, 1, m.MatchID)
		sub = appendString(sub, 2, m.QueueKind)
		sub = appendString(sub, 3, m.Label)
		sub = appendString(sub, 4, m.Side.String())
		sub = appendString(sub, 5, m.Opponent)
		b = appendMessage(b, fieldMatchFound, sub)
	case msg.State != nil:
		b = appendMessage(b, fieldState, appendGameState(nil, *msg.State))
	case msg.Over != nil:
		var sub []byte
		sub = appendString(sub, 1, msg.Over.WinnerID)
		sub = appendString(sub, 2, msg.Over.Reason)
		sub = appendVarint(sub, 3, uint64(msg.Over.Score[0]))
		sub = appendVarint(sub, 4, uint64(msg.Over.Score[1]))
		b = appendMessage(b, fieldOver, sub)
	case msg.Failed != nil:
		b = appendString(b, fieldReason, msg.Failed.Reason)
	case msg.Waiting != nil:
		b = appendString(b, fieldQueueKind, msg.Waiting.QueueKind)
	case msg.Error != nil:
		b = appendString(b, fieldMessage, msg.Error.Message)
	}
	return b, nil
}

func (ProtoCodec) DecodeOutbound(b []byte) (Outbound, error) {
	var out Outbound
	var queueKind, reason, message string
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldType:
			return consumeString(typ, b, &out.Type)
		case fieldQueueKind:
			return consumeString(typ, b, &queueKind)
		case fieldReason:
			return consumeString(typ, b, &reason)
		case fieldMessage:
			return consumeString(typ, b, &message)
		case fieldMatchFound:
			out.MatchFound = &MatchFound{}
			return consumeMessage(typ, b, func(b []byte) error { return decodeMatchFound(b, out.MatchFound) })
		case fieldState:
			out.State = &pong.GameState{}
			return consumeMessage(typ, b, func(b []byte) error { return decodeGameState(b, out.State) })
		case fieldOver:
			out.Over = &MatchOver{}
			return consumeMessage(typ, b, func(b []byte) error { return decodeMatchOver(b, out.Over) })
		}
		return 0, nil
	})
	if err != nil {
		return Outbound{}, fmt.Errorf("malformed frame: %w", err)
	}
	switch out.Type {
	case EventMatchmakingFailed:
		out.Failed = &Failed{Reason: reason}
	case EventWaiting:
		out.Waiting = &Waiting{QueueKind: queueKind}
	case EventError:
		out.Error = &ErrorMessage{Message: message}
	}
	return out, nil
}

// GameState: tick = 1, ball = 2, players = 3 (repeated).
func appendGameState(b []byte, s pong.GameState) []byte {
	b = appendVarint(b, 1, s.Tick)
	var ball []byte
	ball = appendMessage(ball, 1, appendVector(nil, s.Ball.Position))
	ball = appendMessage(ball, 2, appendVector(nil, s.Ball.Velocity))
	b = appendMessage(b, 2, ball)
	for _, p := range s.Players {
		var sub []byte
		sub = appendString(sub, 1, p.ID)
		sub = appendString(sub, 2, p.Side.String())
		sub = appendVarint(sub, 3, uint64(p.Score))
		var bar []byte
		bar = appendMessage(bar, 1, appendVector(nil, p.Bar.TopLeft))
		bar = appendMessage(bar, 2, appendVector(nil, p.Bar.BottomRight))
		sub = appendMessage(sub, 4, bar)
		b = appendMessage(b, 3, sub)
	}
	return b
}

func appendVector(b []byte, v geometry.Vector2d) []byte {
	b = appendDouble(b, 1, v.X)
	return appendDouble(b, 2, v.Y)
}

func decodeGameState(b []byte, s *pong.GameState) error {
	players := 0
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &s.Tick)
		case 2:
			return consumeMessage(typ, b, func(b []byte) error {
				return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeMessage(typ, b, func(b []byte) error { return decodeVector(b, &s.Ball.Position) })
					case 2:
						return consumeMessage(typ, b, func(b []byte) error { return decodeVector(b, &s.Ball.Velocity) })
					}
					return 0, nil
				})
			})
		case 3:
			if players >= len(s.Players) {
				return 0, errors.New("more than two players")
			}
			p := &s.Players[players]
			players++
			return consumeMessage(typ, b, func(b []byte) error { return decodePlayer(b, p) })
		}
		return 0, nil
	})
}

func decodePlayer(b []byte, p *pong.Player) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &p.ID)
		case 2:
			var side string
			n, err := consumeString(typ, b, &side)
			if err != nil {
				return 0, err
			}
			return n, p.Side.UnmarshalText([]byte(side))
		case 3:
			var score uint64
			n, err := consumeVarint(typ, b, &score)
			p.Score = int(score)
			return n, err
		case 4:
			return consumeMessage(typ, b, func(b []byte) error {
				return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
					switch num {
					case 1:
						return consumeMessage(typ, b, func(b []byte) error { return decodeVector(b, &p.Bar.TopLeft) })
					case 2:
						return consumeMessage(typ, b, func(b []byte) error { return decodeVector(b, &p.Bar.BottomRight) })
					}
					return 0, nil
				})
			})
		}
		return 0, nil
	})
}

func decodeVector(b []byte, v *geometry.Vector2d) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeDouble(typ, b, &v.X)
		case 2:
			return consumeDouble(typ, b, &v.Y)
		}
		return 0, nil
	})
}

func decodeMatchFound(b []byte, m *MatchFound) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(typ, b, &m.MatchID)
		case 2:
			return consumeString(typ, b, &m.QueueKind)
		case 3:
			return consumeString(typ, b, &m.Label)
		case 4:
			var side string
			n, err := consumeString(typ, b, &side)
			if err != nil {
				return 0, err
			}
			return n, m.Side.UnmarshalText([]byte(side))
		case 5:
			return consumeString(typ, b, &m.Opponent)
		}
		return 0, nil
	})
}

func decodeMatchOver(b []byte, o *MatchOver) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var v uint64
		switch num {
		case 1:
			return consumeString(typ, b, &o.WinnerID)
		case 2:
			return consumeString(typ, b, &o.Reason)
		case 3:
			n, err := consumeVarint(typ, b, &v)
			o.Score[0] = int(v)
			return n, err
		case 4:
			n, err := consumeVarint(typ, b, &v)
			o.Score[1] = int(v)
			return n, err
		}
		return 0, nil
	})
}

// walk calls fn for every field of a message. fn returns the number of bytes
// it consumed, or 0 to have the field skipped.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return protowire.ParseError(m)
		}
		b = b[m:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, sub []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, sub)
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	if err != nil {
		return 0, err
	}
	if v > 1 {
		return 0, fmt.Errorf("bool out of range: %d", v)
	}
	*dst = protowire.DecodeBool(v)
	return n, nil
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, errWireType
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeMessage(typ protowire.Type, b []byte, decode func([]byte) error) (int, error) {
	if typ != protowire.BytesType {
		return 0, errWireType
	}
	sub, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return n, decode(sub)
}

// WriteFrame writes a varint length prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	buf := protowire.AppendVarint(make([]byte, 0, len(payload)+binary.MaxVarintLen32), uint64(len(payload)))
	_, err := w.Write(append(buf, payload...))
	return err
}

// FrameReader reads frames written by WriteFrame.
type FrameReader struct {
	r *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

func (f *FrameReader) ReadFrame() ([]byte, error) {
	size, err := binary.ReadUvarint(f.r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
