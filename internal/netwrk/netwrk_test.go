package netwrk

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pongarena/internal/pong"
)

type fakePeer struct {
	id  string
	err error

	mu       sync.Mutex
	received []Outbound
	closed   bool
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(msg Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.received = append(p.received, msg)
	return nil
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePeer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.received {
		out = append(out, m.Type)
	}
	return out
}

func TestChannel(t *testing.T) {
	ch, err := Channel(MatchRoom("42"))
	require.NoError(t, err)
	assert.Equal(t, "match:42", ch)

	user, err := Channel(UserRoom("42"))
	require.NoError(t, err)
	assert.NotEqual(t, ch, user)

	queue, err := Channel(QueueRoom("RANK"))
	require.NoError(t, err)
	assert.Equal(t, "queue:RANK", queue)

	_, err = Channel(Address{Kind: RoomMatch})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = Channel(Address{Kind: RoomKind(9), ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestHubPublishOnlyReachesRoom(t *testing.T) {
	hub := NewHub(nil)
	alice := &fakePeer{id: "alice"}
	bob := &fakePeer{id: "bob"}
	carol := &fakePeer{id: "carol"}

	require.NoError(t, hub.Join(MatchRoom("m1"), alice))
	require.NoError(t, hub.Join(MatchRoom("m1"), bob))
	require.NoError(t, hub.Join(MatchRoom("m2"), carol))
	assert.Error(t, hub.Join(MatchRoom(""), carol))

	n := hub.Publish(MatchRoom("m1"), StateEvent(pong.GameState{Tick: 3}))
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{EventState}, alice.types())
	assert.Equal(t, []string{EventState}, bob.types())
	assert.Empty(t, carol.types())
	assert.Equal(t, []string{"alice", "bob"}, hub.Members(MatchRoom("m1")))
}

func TestHubDropsFailingPeers(t *testing.T) {
	hub := NewHub(nil)
	ok := &fakePeer{id: "ok"}
	slow := &fakePeer{id: "slow", err: ErrSlowPeer}
	require.NoError(t, hub.Join(MatchRoom("m1"), ok))
	require.NoError(t, hub.Join(MatchRoom("m1"), slow))

	assert.Equal(t, 1, hub.Publish(MatchRoom("m1"), StateEvent(pong.GameState{})))
	assert.Equal(t, []string{"ok"}, hub.Members(MatchRoom("m1")))
}

// reconnectingPeer fails its delivery while a newer connection of the same
// player takes its place in the room.
type reconnectingPeer struct {
	fakePeer
	hub  *Hub
	addr Address
	next Peer
}

func (p *reconnectingPeer) Send(Outbound) error {
	if err := p.hub.Join(p.addr, p.next); err != nil {
		return err
	}
	return ErrPeerClosed
}

func TestHubKeepsReconnectedPeer(t *testing.T) {
	hub := NewHub(nil)
	room := UserRoom("alice")
	fresh := &fakePeer{id: "alice"}
	stale := &reconnectingPeer{fakePeer: fakePeer{id: "alice"}, hub: hub, addr: room, next: fresh}
	require.NoError(t, hub.Join(room, stale))

	assert.Equal(t, 0, hub.Publish(room, StateEvent(pong.GameState{})))
	assert.Equal(t, []string{"alice"}, hub.Members(room))

	assert.Equal(t, 1, hub.Publish(room, StateEvent(pong.GameState{Tick: 1})))
	assert.Equal(t, []string{EventState}, fresh.types())
}

func TestHubLeaveAndTearDown(t *testing.T) {
	hub := NewHub(nil)
	alice := &fakePeer{id: "alice"}
	require.NoError(t, hub.Join(MatchRoom("m1"), alice))
	require.NoError(t, hub.Join(UserRoom("alice"), alice))

	hub.Leave(MatchRoom("m1"), "alice")
	hub.Leave(MatchRoom("m1"), "alice")
	assert.Empty(t, hub.Members(MatchRoom("m1")))

	require.NoError(t, hub.Join(MatchRoom("m1"), alice))
	hub.TearDown(MatchRoom("m1"))
	assert.Equal(t, 0, hub.Publish(MatchRoom("m1"), StateEvent(pong.GameState{})))

	hub.LeaveAll("alice")
	assert.Empty(t, hub.Members(UserRoom("alice")))
}

func TestBroadcaster(t *testing.T) {
	hub := NewHub(nil)
	alice := &fakePeer{id: "alice"}
	bob := &fakePeer{id: "bob"}
	require.NoError(t, hub.Join(UserRoom("alice"), alice))
	require.NoError(t, hub.Join(UserRoom("bob"), bob))
	require.NoError(t, hub.Join(MatchRoom("m1"), alice))
	require.NoError(t, hub.Join(MatchRoom("m1"), bob))

	b := &Broadcaster{Hub: hub}
	b.State("m1", pong.GameState{Tick: 1})
	b.Over("m1", pong.Result{MatchID: "m1", WinnerID: "bob", Reason: pong.ReasonForfeit, Score: [2]int{2, 1}})
	b.TearDown("m1")

	assert.Equal(t, []string{EventState, EventOver}, alice.types())
	last := alice.received[1]
	require.NotNil(t, last.Over)
	assert.Equal(t, "bob", last.Over.WinnerID)
	assert.Equal(t, "forfeit", last.Over.Reason)
	assert.Empty(t, hub.Members(MatchRoom("m1")))
}

func TestBroadcasterReportsAbortToUserRooms(t *testing.T) {
	hub := NewHub(nil)
	alice := &fakePeer{id: "alice"}
	bob := &fakePeer{id: "bob"}
	require.NoError(t, hub.Join(UserRoom("alice"), alice))
	require.NoError(t, hub.Join(UserRoom("bob"), bob))

	b := &Broadcaster{Hub: hub}
	b.Over("m1", pong.Result{
		Players: [2]string{"alice", "bob"},
		Reason:  pong.ReasonAborted,
		Err:     pong.ErrMatchFormationTimeout,
	})

	for _, p := range []*fakePeer{alice, bob} {
		require.Equal(t, []string{EventMatchmakingFailed}, p.types())
		assert.Contains(t, p.received[0].Failed.Reason, "matchmaking failed")
	}
}

func TestOutboxAfterClose(t *testing.T) {
	o := newOutbox()
	require.NoError(t, o.push([]byte("a")))
	assert.True(t, o.close())
	assert.False(t, o.close())
	assert.True(t, errors.Is(o.push([]byte("b")), ErrPeerClosed))

	full := newOutbox()
	for i := 0; i < sendBuffer; i++ {
		require.NoError(t, full.push(nil))
	}
	assert.ErrorIs(t, full.push(nil), ErrSlowPeer)
}
