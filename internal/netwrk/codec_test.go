package netwrk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"pongarena/internal/geometry"
	"pongarena/internal/pong"
)

func sampleState() pong.GameState {
	return pong.GameState{
		Tick: 120,
		Ball: pong.Ball{
			Position: geometry.Vector2d{X: 12.5, Y: 7.25},
			Velocity: geometry.Vector2d{X: -40.1, Y: 3},
		},
		Players: [2]pong.Player{
			{ID: "alice", Side: pong.Left, Score: 3, Bar: geometry.NewRectangle(geometry.Vector2d{X: 2, Y: 20}, 1, 10)},
			{ID: "bob", Side: pong.Right, Score: 9, Bar: geometry.NewRectangle(geometry.Vector2d{X: 97, Y: 0}, 1, 10)},
		},
	}
}

func TestJSONDecodeInbound(t *testing.T) {
	c := JSONCodec{}

	in, err := c.DecodeInbound([]byte(`{"type":"match_making.entry","payload":{"queueKind":"RANK"}}`))
	require.NoError(t, err)
	assert.Equal(t, Inbound{Type: EventQueueEntry, QueueKind: "RANK"}, in)

	in, err = c.DecodeInbound([]byte(`{"type":"match.input","payload":{"up":true,"down":false}}`))
	require.NoError(t, err)
	assert.Equal(t, pong.PlayerInput{Up: true}, in.Input)

	in, err = c.DecodeInbound([]byte(`{"type":"match_making.leave"}`))
	require.NoError(t, err)
	assert.Equal(t, EventQueueLeave, in.Type)
}

func TestJSONRejectsMalformedInbound(t *testing.T) {
	c := JSONCodec{}
	for name, raw := range map[string]string{
		"not json":       `{"type":`,
		"unknown type":   `{"type":"match.cheat","payload":{}}`,
		"input not bool": `{"type":"match.input","payload":{"up":"yes"}}`,
		"missing kind":   `{"type":"match_making.entry","payload":{}}`,
		"no payload":     `{"type":"match.input"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.DecodeInbound([]byte(raw))
			var invalid *pong.InvalidInputError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestJSONOutboundShape(t *testing.T) {
	b, err := JSONCodec{}.EncodeOutbound(MatchFoundEvent(MatchFound{MatchID: "m1", QueueKind: "RANK", Side: pong.Right, Opponent: "alice"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"match_found","payload":{"matchId":"m1","queueKind":"RANK","label":"","side":"right","opponent":"alice"}}`, string(b))

	out, err := JSONCodec{}.DecodeOutbound(b)
	require.NoError(t, err)
	require.NotNil(t, out.MatchFound)
	assert.Equal(t, pong.Right, out.MatchFound.Side)
}

func TestCodecsCarryState(t *testing.T) {
	for name, c := range map[string]Codec{"json": JSONCodec{}, "proto": ProtoCodec{}} {
		t.Run(name, func(t *testing.T) {
			b, err := c.EncodeOutbound(StateEvent(sampleState()))
			require.NoError(t, err)
			out, err := c.DecodeOutbound(b)
			require.NoError(t, err)
			assert.Equal(t, EventState, out.Type)
			require.NotNil(t, out.State)
			assert.Equal(t, sampleState(), *out.State)

			b, err = c.EncodeInbound(Inbound{Type: EventInput, Input: pong.PlayerInput{Down: true}})
			require.NoError(t, err)
			in, err := c.DecodeInbound(b)
			require.NoError(t, err)
			assert.Equal(t, pong.PlayerInput{Down: true}, in.Input)
		})
	}
}

func TestProtoOutboundEvents(t *testing.T) {
	c := ProtoCodec{}
	for _, msg := range []Outbound{
		OverEvent(MatchOver{WinnerID: "bob", Reason: "score", Score: [2]int{4, 10}}),
		FailedEvent("matchmaking failed"),
		WaitingEvent("CASUAL"),
		MatchFoundEvent(MatchFound{MatchID: "m1", QueueKind: "RANK", Label: "brave-otter", Side: pong.Left, Opponent: "bob"}),
	} {
		b, err := c.EncodeOutbound(msg)
		require.NoError(t, err)
		got, err := c.DecodeOutbound(b)
		require.NoError(t, err)
		assert.Equal(t, msg, got)
	}
}

func TestProtoRejectsMalformedInbound(t *testing.T) {
	c := ProtoCodec{}
	var invalid *pong.InvalidInputError

	_, err := c.DecodeInbound([]byte{0xff})
	assert.ErrorAs(t, err, &invalid)

	// up = 7 is not a bool.
	b := appendString(nil, fieldType, EventInput)
	b = protowire.AppendTag(b, fieldUp, protowire.VarintType)
	b = protowire.AppendVarint(b, 7)
	_, err = c.DecodeInbound(b)
	assert.ErrorAs(t, err, &invalid)

	_, err = c.DecodeInbound(appendString(nil, fieldType, "match.cheat"))
	assert.ErrorAs(t, err, &invalid)

	// Unknown fields are skipped.
	b = appendString(nil, fieldType, EventQueueLeave)
	b = appendVarint(b, 99, 1)
	in, err := c.DecodeInbound(b)
	require.NoError(t, err)
	assert.Equal(t, EventQueueLeave, in.Type)
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("hello")))
	require.NoError(t, WriteFrame(&buf, nil))

	r := NewFrameReader(&buf)
	b, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	b, err = r.ReadFrame()
	require.NoError(t, err)
	assert.Empty(t, b)

	assert.ErrorIs(t, WriteFrame(&buf, make([]byte, MaxFrameSize+1)), ErrFrameTooLarge)

	huge := protowire.AppendVarint(nil, MaxFrameSize+1)
	_, err = NewFrameReader(bytes.NewReader(huge)).ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}
