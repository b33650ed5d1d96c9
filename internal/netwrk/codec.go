package netwrk

import (
	"encoding/json"
	"fmt"

	"pongarena/internal/pong"
)

// Codec turns events into transport payloads and back. Decoding a malformed
// inbound payload returns a *pong.InvalidInputError.
type Codec interface {
	EncodeOutbound(msg Outbound) ([]byte, error)
	DecodeInbound(b []byte) (Inbound, error)
	EncodeInbound(msg Inbound) ([]byte, error)
	DecodeOutbound(b []byte) (Outbound, error)
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type queueEntry struct {
	QueueKind string `json:"queueKind"`
}

type matchJoin struct {
	MatchID string `json:"matchId"`
}

type hello struct {
	Token string `json:"token"`
}

// JSONCodec is used for websocket text frames: {"type": ..., "payload": ...}.
type JSONCodec struct{}

func (JSONCodec) EncodeOutbound(msg Outbound) ([]byte, error) {
	return encodeEnvelope(msg.Type, msg.payload())
}

func (JSONCodec) EncodeInbound(msg Inbound) ([]byte, error) {
	var payload any
	switch msg.Type {
	case EventQueueEntry:
		payload = queueEntry{QueueKind: msg.QueueKind}
	case EventInput:
		payload = msg.Input
	case EventJoin:
		payload = matchJoin{MatchID: msg.MatchID}
	case EventHello:
		payload = hello{Token: msg.Token}
	}
	return encodeEnvelope(msg.Type, payload)
}

func encodeEnvelope(typ string, payload any) ([]byte, error) {
	env := envelope{Type: typ}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
		}
		env.Payload = b
	}
	return json.Marshal(env)
}

func (JSONCodec) DecodeInbound(b []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Inbound{}, invalid("malformed envelope: %v", err)
	}

	in := Inbound{Type: env.Type}
	switch env.Type {
	case EventQueueEntry:
		var p queueEntry
		if err := unmarshalPayload(env, &p); err != nil {
			return Inbound{}, err
		}
		in.QueueKind = p.QueueKind
	case EventQueueLeave:
	case EventInput:
		if err := unmarshalPayload(env, &in.Input); err != nil {
			return Inbound{}, err
		}
	case EventJoin:
		var p matchJoin
		if err := unmarshalPayload(env, &p); err != nil {
			return Inbound{}, err
		}
		in.MatchID = p.MatchID
	case EventHello:
		var p hello
		if err := unmarshalPayload(env, &p); err != nil {
			return Inbound{}, err
		}
		in.Token = p.Token
	default:
		return Inbound{}, invalid("unknown event type %q", env.Type)
	}
	return in, validate(in)
}

func (JSONCodec) DecodeOutbound(b []byte) (Outbound, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Outbound{}, fmt.Errorf("malformed envelope: %w", err)
	}

	out := Outbound{Type: env.Type}
	var target any
	switch env.Type {
	case EventMatchFound:
		out.MatchFound = &MatchFound{}
		target = out.MatchFound
	case EventState:
		out.State = &pong.GameState{}
		target = out.State
	case EventOver:
		out.Over = &MatchOver{}
		target = out.Over
	case EventMatchmakingFailed:
		out.Failed = &Failed{}
		target = out.Failed
	case EventWaiting:
		out.Waiting = &Waiting{}
		target = out.Waiting
	case EventError:
		out.Error = &ErrorMessage{}
		target = out.Error
	default:
		return Outbound{}, fmt.Errorf("unknown event type %q", env.Type)
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, target); err != nil {
			return Outbound{}, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return out, nil
}

func unmarshalPayload(env envelope, v any) error {
	if len(env.Payload) == 0 {
		return invalid("%s: missing payload", env.Type)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return invalid("%s: %v", env.Type, err)
	}
	return nil
}

// validate applies the checks shared by every codec.
func validate(in Inbound) error {
	switch in.Type {
	case EventQueueEntry:
		if in.QueueKind == "" {
			return invalid("%s: queueKind is required", in.Type)
		}
	case EventJoin:
		if in.MatchID == "" {
			return invalid("%s: matchId is required", in.Type)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return &pong.InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}
