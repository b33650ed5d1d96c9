// Package server connects players to the matchmaker and to the match loops
// created for them.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gorilla/websocket"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pongarena/internal/auth"
	"pongarena/internal/lobby"
	"pongarena/internal/netwrk"
	"pongarena/internal/pong"
	"pongarena/internal/store"
)

const requestTimeout = 5 * time.Second

var ErrShuttingDown = errors.New("server is shutting down")

type Options struct {
	Rules         pong.Rules
	Queues        []lobby.QueueKind
	Recorder      store.Recorder
	Authenticator auth.Authenticator
	HelloTimeout  time.Duration
	Logger        *slog.Logger
}

type Server struct {
	rules        pong.Rules
	hub          *netwrk.Hub
	bc           *netwrk.Broadcaster
	mm           *lobby.Matchmaker
	recorder     store.Recorder
	authn        auth.Authenticator
	helloTimeout time.Duration
	log          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	peers    map[string]netwrk.Peer
	sessions map[string]auth.Session
	loops    map[string]*pong.Loop
	byPlayer map[string]string
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = store.Log{Logger: logger}
	}
	helloTimeout := opts.HelloTimeout
	if helloTimeout <= 0 {
		helloTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	hub := netwrk.NewHub(logger)
	s := &Server{
		rules:        opts.Rules,
		hub:          hub,
		bc:           &netwrk.Broadcaster{Hub: hub, Log: logger},
		recorder:     recorder,
		authn:        opts.Authenticator,
		helloTimeout: helloTimeout,
		log:          logger,
		ctx:          ctx,
		cancel:       cancel,
		peers:        make(map[string]netwrk.Peer),
		sessions:     make(map[string]auth.Session),
		loops:        make(map[string]*pong.Loop),
		byPlayer:     make(map[string]string),
	}
	s.mm = lobby.NewMatchmaker(opts.Queues, s.paired, logger)
	return s
}

func (s *Server) Hub() *netwrk.Hub              { return s.hub }
func (s *Server) Matchmaker() *lobby.Matchmaker { return s.mm }

// Attach registers the peer of a session and joins its personal room. A newer
// peer for the same player replaces the older one.
func (s *Server) Attach(session auth.Session, peer netwrk.Peer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrShuttingDown
	}
	old := s.peers[session.PlayerID]
	s.peers[session.PlayerID] = peer
	s.sessions[session.PlayerID] = session
	s.mu.Unlock()

	if old != nil && old != peer {
		old.Close()
	}
	s.log.Info("player connected", slog.String("player_id", session.PlayerID), slog.String("username", session.Username))
	return s.hub.Join(netwrk.UserRoom(session.PlayerID), peer)
}

// Detach is called once the peer's connection is gone. The player leaves every
// queue and forfeits a running match.
func (s *Server) Detach(session auth.Session, peer netwrk.Peer) {
	id := session.PlayerID

	s.mu.Lock()
	if s.peers[id] != peer {
		// Replaced by a newer connection.
		s.mu.Unlock()
		return
	}
	delete(s.peers, id)
	delete(s.sessions, id)
	loop := s.loops[s.byPlayer[id]]
	s.mu.Unlock()

	s.hub.LeaveAll(id)

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := s.mm.LeaveAll(ctx, id); err != nil && !errors.Is(err, lobby.ErrClosed) {
		s.log.Warn("failed to remove player from queues", slog.String("player_id", id), slog.Any("error", err))
	}
	if loop != nil {
		if err := loop.Disconnect(id); err != nil && !errors.Is(err, pong.ErrLoopClosed) {
			s.log.Warn("failed to report disconnect", slog.String("player_id", id), slog.Any("error", err))
		}
	}
	s.log.Info("player disconnected", slog.String("player_id", id))
}

// Handle acts on one inbound event of a session.
func (s *Server) Handle(session auth.Session, in netwrk.Inbound) {
	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()

	var err error
	switch in.Type {
	case netwrk.EventQueueEntry:
		err = s.enter(ctx, session, in.QueueKind)
	case netwrk.EventQueueLeave:
		err = s.leave(ctx, session)
	case netwrk.EventInput:
		err = s.input(session, in.Input)
	case netwrk.EventJoin:
		err = s.join(session, in.MatchID)
	case netwrk.EventHello:
		err = &pong.InvalidInputError{PlayerID: session.PlayerID, Reason: "already authenticated"}
	default:
		err = &pong.InvalidInputError{PlayerID: session.PlayerID, Reason: fmt.Sprintf("unknown event type %q", in.Type)}
	}
	if err != nil {
		s.log.Debug("event rejected",
			slog.String("player_id", session.PlayerID),
			slog.String("type", in.Type),
			slog.Any("error", err))
		s.hub.Publish(netwrk.UserRoom(session.PlayerID), netwrk.ErrorEvent(err))
	}
}

func (s *Server) enter(ctx context.Context, session auth.Session, raw string) error {
	kind, err := lobby.ParseQueueKind(raw)
	if err != nil {
		return err
	}
	// The room is joined first so that a pairing made by someone else's entry
	// always finds the player in it and takes them out.
	room := netwrk.QueueRoom(string(kind))
	if peer := s.peer(session.PlayerID); peer != nil {
		if err := s.hub.Join(room, peer); err != nil {
			return err
		}
	}
	pairing, err := s.mm.Enter(ctx, session.PlayerID, kind)
	if err != nil {
		s.hub.Leave(room, session.PlayerID)
		return err
	}
	if pairing == nil && !s.mm.InMatch(session.PlayerID) {
		s.hub.Publish(netwrk.UserRoom(session.PlayerID), netwrk.WaitingEvent(string(kind)))
	}
	return nil
}

func (s *Server) leave(ctx context.Context, session auth.Session) error {
	s.leaveQueueRooms(session.PlayerID)
	return s.mm.LeaveAll(ctx, session.PlayerID)
}

func (s *Server) leaveQueueRooms(playerID string) {
	for _, kind := range s.mm.Kinds() {
		s.hub.Leave(netwrk.QueueRoom(string(kind)), playerID)
	}
}

func (s *Server) input(session auth.Session, in pong.PlayerInput) error {
	loop := s.loopOf(session.PlayerID)
	if loop == nil {
		return &pong.InvalidInputError{PlayerID: session.PlayerID, Reason: "not in a match"}
	}
	return loop.Input(session.PlayerID, in)
}

func (s *Server) join(session auth.Session, matchID string) error {
	loop := s.loopOf(session.PlayerID)
	if loop == nil || loop.ID() != matchID {
		return &pong.InvalidInputError{PlayerID: session.PlayerID, Reason: "not a player of match " + matchID}
	}
	peer := s.peer(session.PlayerID)
	if peer == nil {
		return netwrk.ErrPeerClosed
	}
	if err := s.hub.Join(netwrk.MatchRoom(matchID), peer); err != nil {
		return err
	}
	return loop.Join(session.PlayerID)
}

// paired runs on the matchmaker's queue goroutine.
func (s *Server) paired(p lobby.Pairing) {
	kind := string(p.Kind)
	loop := pong.NewLoop(p.MatchID, kind, p.Players, pong.LoopOptions{
		Rules:       s.rules,
		Broadcaster: s.bc,
		Recorder:    s.recorder,
		OnRelease:   s.released,
		OnFinish:    s.finished,
		Logger:      s.log,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.mm.Release(p.Players[:]...)
		return
	}
	s.loops[p.MatchID] = loop
	var peers [2]netwrk.Peer
	var names [2]string
	for i, id := range p.Players {
		s.byPlayer[id] = p.MatchID
		peers[i] = s.peers[id]
		names[i] = s.sessions[id].Username
		if names[i] == "" {
			names[i] = id
		}
	}
	s.mu.Unlock()

	loop.Start(s.ctx)

	label := fmt.Sprintf("%s match %s", cases.Title(language.English).String(strings.ToLower(kind)), petname.Generate(2, "-"))
	for i, id := range p.Players {
		s.leaveQueueRooms(id)
		s.hub.Publish(netwrk.UserRoom(id), netwrk.MatchFoundEvent(netwrk.MatchFound{
			MatchID:   p.MatchID,
			QueueKind: kind,
			Label:     label,
			Side:      pong.Side(i),
			Opponent:  names[1-i],
		}))

		// Joining the match room is what confirms the player to the loop.
		if peers[i] == nil {
			continue
		}
		if err := s.hub.Join(netwrk.MatchRoom(p.MatchID), peers[i]); err != nil {
			s.log.Warn("failed to join match room", slog.String("player_id", id), slog.Any("error", err))
			continue
		}
		if err := loop.Join(id); err != nil {
			s.log.Warn("failed to confirm player", slog.String("player_id", id), slog.Any("error", err))
		}
	}
}

// released runs on the loop goroutine before the players hear the result, so
// they can queue again as soon as they do.
func (s *Server) released(res pong.Result) {
	s.mm.Release(res.Players[:]...)
}

// finished runs on the loop goroutine once the match room is gone.
func (s *Server) finished(res pong.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loops, res.MatchID)
	for _, id := range res.Players {
		// A released player may already be in a newer match.
		if s.byPlayer[id] == res.MatchID {
			delete(s.byPlayer, id)
		}
	}
}

func (s *Server) peer(playerID string) netwrk.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers[playerID]
}

func (s *Server) loopOf(playerID string) *pong.Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[s.byPlayer[playerID]]
}

// MatchInfo describes a live match.
type MatchInfo struct {
	ID        string    `json:"id"`
	QueueKind string    `json:"queue_kind"`
	Players   [2]string `json:"players"`
	Status    string    `json:"status"`
}

// Matches lists the live matches ordered by id.
func (s *Server) Matches() []MatchInfo {
	s.mu.Lock()
	out := make([]MatchInfo, 0, len(s.loops))
	for _, l := range s.loops {
		out = append(out, MatchInfo{
			ID:        l.ID(),
			QueueKind: l.QueueKind(),
			Players:   l.Players(),
			Status:    l.Status().String(),
		})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ServeWS runs a websocket connection for an authenticated session until it
// closes.
func (s *Server) ServeWS(session auth.Session, conn *websocket.Conn) {
	peer := netwrk.NewWSPeer(conn, session.PlayerID, s.log)
	s.serve(session, peer, conn, peer.Run)
}

// ServeTCP authenticates a raw TCP connection from its hello frame and runs
// it until it closes.
func (s *Server) ServeTCP(conn net.Conn) {
	frames := netwrk.NewFrameReader(conn)
	hello, err := netwrk.ReadHello(conn, frames, s.helloTimeout)
	if err != nil {
		s.log.Debug("tcp handshake failed", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
		conn.Close()
		return
	}
	session, err := s.authn.Authenticate(hello.Token)
	if err != nil {
		s.log.Info("tcp client rejected", slog.String("remote", conn.RemoteAddr().String()), slog.Any("error", err))
		b, _ := netwrk.ProtoCodec{}.EncodeOutbound(netwrk.ErrorEvent(err))
		_ = netwrk.WriteFrame(conn, b)
		conn.Close()
		return
	}
	peer := netwrk.NewTCPPeer(conn, frames, session.PlayerID, s.log)
	s.serve(session, peer, conn, peer.Run)
}

// serve owns conn until run returns. Peers only close their connection from
// their write pump, which does not exist before run starts.
func (s *Server) serve(session auth.Session, peer netwrk.Peer, conn io.Closer, run func(func(netwrk.Inbound))) {
	if err := s.Attach(session, peer); err != nil {
		s.log.Warn("failed to attach peer", slog.String("player_id", session.PlayerID), slog.Any("error", err))
		peer.Close()
		conn.Close()
		return
	}
	defer s.Detach(session, peer)
	run(func(in netwrk.Inbound) { s.Handle(session, in) })
}

// Shutdown stops every running match and the matchmaker. Matches end with
// the shutdown reason and their records are flushed before it returns, unless
// ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	loops := make([]*pong.Loop, 0, len(s.loops))
	for _, l := range s.loops {
		loops = append(loops, l)
	}
	peers := make([]netwrk.Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	s.cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, l := range loops {
			l.Stop()
			l.Wait()
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mm.Close()
	for _, p := range peers {
		p.Close()
	}
	return nil
}
