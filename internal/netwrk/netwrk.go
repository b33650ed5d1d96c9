package netwrk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
)

type RoomKind int

const (
	RoomMatch RoomKind = iota
	RoomQueue
	RoomUser
)

func (k RoomKind) String() string {
	switch k {
	case RoomMatch:
		return "match"
	case RoomQueue:
		return "queue"
	case RoomUser:
		return "user"
	}
	return "unknown"
}

// Address names a room by kind and id. Two addresses of different kinds
// never resolve to the same channel, whatever their ids.
type Address struct {
	Kind RoomKind
	ID   string
}

func MatchRoom(matchID string) Address { return Address{Kind: RoomMatch, ID: matchID} }
func QueueRoom(kind string) Address    { return Address{Kind: RoomQueue, ID: kind} }
func UserRoom(playerID string) Address { return Address{Kind: RoomUser, ID: playerID} }

var ErrInvalidAddress = errors.New("invalid room address")

// Channel maps an address to the transport channel name. It is the only
// place channel names are built.
func Channel(addr Address) (string, error) {
	if addr.ID == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidAddress)
	}
	switch addr.Kind {
	case RoomMatch, RoomQueue, RoomUser:
		return addr.Kind.String() + ":" + addr.ID, nil
	}
	return "", fmt.Errorf("%w: kind %d", ErrInvalidAddress, addr.Kind)
}

var (
	ErrPeerClosed = errors.New("peer is closed")
	ErrSlowPeer   = errors.New("peer is not keeping up")
)

// Peer is one connected player. Send must not block: a peer that cannot
// take a message returns an error and is dropped from its rooms.
type Peer interface {
	ID() string
	Send(msg Outbound) error
	Close() error
}

// Hub keeps the members of every room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Peer
	log   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{rooms: make(map[string]map[string]Peer), log: logger}
}

// Join adds the peer to the room, replacing an earlier peer with the same id.
func (h *Hub) Join(addr Address, peer Peer) error {
	ch, err := Channel(addr)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[ch]
	if !ok {
		room = make(map[string]Peer)
		h.rooms[ch] = room
	}
	room[peer.ID()] = peer
	return nil
}

func (h *Hub) Leave(addr Address, peerID string) {
	ch, err := Channel(addr)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(ch, peerID)
}

// LeaveAll removes the peer from every room it is in.
func (h *Hub) LeaveAll(peerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms {
		h.remove(ch, peerID)
	}
}

func (h *Hub) remove(ch, peerID string) {
	room, ok := h.rooms[ch]
	if !ok {
		return
	}
	delete(room, peerID)
	if len(room) == 0 {
		delete(h.rooms, ch)
	}
}

// Publish sends msg to every member of the room and returns how many took it.
// Members that fail are removed from the room.
func (h *Hub) Publish(addr Address, msg Outbound) int {
	ch, err := Channel(addr)
	if err != nil {
		h.log.Warn("dropping message for invalid address", slog.Any("error", err))
		return 0
	}

	h.mu.RLock()
	members := make([]Peer, 0, len(h.rooms[ch]))
	for _, p := range h.rooms[ch] {
		members = append(members, p)
	}
	h.mu.RUnlock()

	sent := 0
	var failed []Peer
	for _, p := range members {
		if err := p.Send(msg); err != nil {
			h.log.Debug("failed to deliver",
				slog.String("channel", ch),
				slog.String("peer_id", p.ID()),
				slog.String("type", msg.Type),
				slog.Any("error", err))
			failed = append(failed, p)
			continue
		}
		sent++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, p := range failed {
			// The player may have reconnected since the snapshot.
			if h.rooms[ch][p.ID()] == p {
				h.remove(ch, p.ID())
			}
		}
		h.mu.Unlock()
	}
	return sent
}

// TearDown removes the room and all of its memberships.
func (h *Hub) TearDown(addr Address) {
	ch, err := Channel(addr)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, ch)
}

// Members lists the peer ids in a room, sorted.
func (h *Hub) Members(addr Address) []string {
	ch, err := Channel(addr)
	if err != nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[ch]))
	for id := range h.rooms[ch] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Listen accepts TCP connections on addr until ctx is done, handing each one
// to handle on its own goroutine.
func Listen(ctx context.Context, addr string, handle func(net.Conn), logger *slog.Logger) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return Serve(ctx, listener, handle, logger)
}

// Serve runs the accept loop of an existing listener and closes it when ctx
// is done.
func Serve(ctx context.Context, listener net.Listener, handle func(net.Conn), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("accepting tcp connections", slog.String("addr", listener.Addr().String()))
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("accept failed", slog.Any("error", err))
				continue
			}
			return err
		}
		go handle(conn)
	}
}
