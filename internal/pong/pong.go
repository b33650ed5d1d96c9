package pong

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pongarena/internal/store"
)

const recordTimeout = 5 * time.Second

type Reason string

const (
	ReasonScore    Reason = "score"
	ReasonForfeit  Reason = "forfeit"
	ReasonAborted  Reason = "aborted"
	ReasonShutdown Reason = "shutdown"
)

// Result is how a match ended. WinnerID is empty for aborted and shut down
// matches. Err carries ErrMatchFormationTimeout or ErrPlayerDisconnected when
// one of those ended the match.
type Result struct {
	MatchID   string
	QueueKind string
	Players   [2]string
	WinnerID  string
	Reason    Reason
	Score     [2]int
	EndDate   time.Time
	Err       error
}

// Broadcaster delivers what a loop produces to the match's room. Snapshots
// are values; implementations must not block the loop for long.
type Broadcaster interface {
	State(matchID string, snapshot GameState)
	Over(matchID string, result Result)
	TearDown(matchID string)
}

type LoopOptions struct {
	Rules       Rules
	Seed        uint64
	Broadcaster Broadcaster
	Recorder    store.Recorder
	// OnRelease runs once on the loop goroutine before the players are told
	// how the match ended.
	OnRelease func(Result)
	// OnFinish runs once on the loop goroutine after the room is torn down.
	OnFinish func(Result)
	Logger   *slog.Logger
}

type commandKind int

const (
	cmdJoin commandKind = iota
	cmdDisconnect
)

type command struct {
	kind commandKind
	side Side
}

type record struct {
	name string
	fn   func(ctx context.Context) error
}

// Loop drives one match from forming to finished on its own goroutine. Joins
// and disconnects are posted to its mailbox, input only updates a buffer that
// is read at the start of every tick.
type Loop struct {
	match     *Match
	rules     Rules
	players   [2]string
	bc        Broadcaster
	recorder  store.Recorder
	onRelease func(Result)
	onFinish  func(Result)
	log       *slog.Logger

	ingress chan command
	mu      sync.Mutex
	pending [2]PlayerInput

	status  atomic.Int32
	started atomic.Bool
	opened  bool
	result  Result

	ticker     *time.Ticker
	stopTicker sync.Once

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	records  chan record
	recDone  chan struct{}
}

func NewLoop(id, kind string, players [2]string, opts LoopOptions) *Loop {
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = store.Log{Logger: opts.Logger}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		match:     NewMatch(id, kind, players, opts.Rules, seed),
		rules:     opts.Rules,
		players:   players,
		bc:        opts.Broadcaster,
		recorder:  recorder,
		onRelease: opts.OnRelease,
		onFinish:  opts.OnFinish,
		log:       logger.With(slog.String("match_id", id), slog.String("queue_kind", kind)),
		ingress:   make(chan command, 8),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		records:   make(chan record, 2),
		recDone:   make(chan struct{}),
	}
}

func (l *Loop) ID() string            { return l.match.ID }
func (l *Loop) QueueKind() string     { return l.match.QueueKind }
func (l *Loop) Players() [2]string    { return l.players }
func (l *Loop) Status() Status        { return Status(l.status.Load()) }
func (l *Loop) Done() <-chan struct{} { return l.done }

// Result is only meaningful once Done is closed.
func (l *Loop) Result() Result {
	<-l.done
	return l.result
}

func (l *Loop) Start(ctx context.Context) {
	if !l.started.CompareAndSwap(false, true) {
		return
	}
	go l.drainRecords()
	go l.run(ctx)
}

// Stop ends the loop and waits for it. Calling it more than once is fine.
func (l *Loop) Stop() {
	l.quitOnce.Do(func() { close(l.quit) })
	if l.started.Load() {
		<-l.done
	}
}

// Wait blocks until the loop and its pending persistence calls are done.
func (l *Loop) Wait() {
	<-l.done
	<-l.recDone
}

// Join confirms that a player's socket is in the match room.
func (l *Loop) Join(playerID string) error {
	return l.post(playerID, cmdJoin)
}

// Disconnect forfeits the match for the player once it is in progress, and
// aborts it while it is still forming.
func (l *Loop) Disconnect(playerID string) error {
	return l.post(playerID, cmdDisconnect)
}

// Input buffers the latest input of a player for the next tick.
func (l *Loop) Input(playerID string, in PlayerInput) error {
	side, ok := l.side(playerID)
	if !ok {
		return &InvalidInputError{PlayerID: playerID, Reason: "player is not in this match"}
	}
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	l.mu.Lock()
	l.pending[side] = in
	l.mu.Unlock()
	return nil
}

func (l *Loop) side(playerID string) (Side, bool) {
	for i, id := range l.players {
		if id == playerID {
			return Side(i), true
		}
	}
	return Left, false
}

func (l *Loop) post(playerID string, kind commandKind) error {
	side, ok := l.side(playerID)
	if !ok {
		return &InvalidInputError{PlayerID: playerID, Reason: "player is not in this match"}
	}
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.ingress <- command{kind: kind, side: side}:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	if res, ok := l.form(ctx); !ok {
		l.finish(res)
		return
	}
	l.begin()
	l.finish(l.play(ctx))
}

func (l *Loop) form(ctx context.Context) (Result, bool) {
	grace := time.NewTimer(l.rules.FormationGrace)
	defer grace.Stop()

	var joined [2]bool
	for !joined[Left] || !joined[Right] {
		select {
		case <-ctx.Done():
			return l.outcome(ReasonShutdown, "", ctx.Err()), false
		case <-l.quit:
			return l.outcome(ReasonShutdown, "", nil), false
		case <-grace.C:
			l.log.Warn("match formation timed out", slog.Any("joined", joined))
			return l.outcome(ReasonAborted, "", ErrMatchFormationTimeout), false
		case cmd := <-l.ingress:
			switch cmd.kind {
			case cmdJoin:
				joined[cmd.side] = true
			case cmdDisconnect:
				return l.outcome(ReasonAborted, "", ErrPlayerDisconnected), false
			}
		}
	}
	return Result{}, true
}

func (l *Loop) begin() {
	l.match.Status = InProgress
	l.match.BeginDate = time.Now().UTC()
	l.status.Store(int32(InProgress))
	l.opened = true

	opened := store.Opened{
		MatchID:   l.match.ID,
		QueueKind: l.match.QueueKind,
		Players:   l.players,
		BeginDate: l.match.BeginDate,
	}
	l.records <- record{name: "open", fn: func(ctx context.Context) error {
		return l.recorder.MatchOpened(ctx, opened)
	}}

	l.log.Info("match started", slog.Any("players", l.players))
	l.bc.State(l.match.ID, l.match.Snapshot())
}

func (l *Loop) play(ctx context.Context) Result {
	l.ticker = time.NewTicker(l.rules.TickInterval())
	defer l.stop()

	dt := l.rules.Dt()
	for {
		select {
		case <-ctx.Done():
			return l.outcome(ReasonShutdown, "", ctx.Err())
		case <-l.quit:
			return l.outcome(ReasonShutdown, "", nil)
		case cmd := <-l.ingress:
			if cmd.kind == cmdDisconnect {
				winner := l.players[cmd.side.Opponent()]
				l.log.Info("player forfeited", slog.String("player_id", l.players[cmd.side]))
				return l.outcome(ReasonForfeit, winner, ErrPlayerDisconnected)
			}
		case <-l.ticker.C:
			snapshot := l.tick(dt)
			l.bc.State(l.match.ID, snapshot)
			if p, ok := l.match.Winner(); ok {
				return l.outcome(ReasonScore, p.ID, nil)
			}
		}
	}
}

// tick takes the buffered inputs as they are right now; anything arriving
// later belongs to the next tick.
func (l *Loop) tick(dt float64) GameState {
	l.mu.Lock()
	inputs := l.pending
	l.mu.Unlock()

	for i, in := range inputs {
		if err := l.match.ApplyInput(l.players[i], in); err != nil {
			l.log.Debug("dropping input", slog.Any("error", err))
		}
	}
	return l.match.Advance(dt)
}

func (l *Loop) stop() {
	l.stopTicker.Do(func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
	})
}

func (l *Loop) outcome(reason Reason, winnerID string, err error) Result {
	return Result{
		MatchID:   l.match.ID,
		QueueKind: l.match.QueueKind,
		Players:   l.players,
		WinnerID:  winnerID,
		Reason:    reason,
		Err:       err,
	}
}

func (l *Loop) finish(res Result) {
	l.stop()
	l.match.Status = Finished
	l.status.Store(int32(Finished))

	res.EndDate = time.Now().UTC()
	res.Score = l.match.Snapshot().Score()
	l.result = res

	if l.onRelease != nil {
		l.onRelease(res)
	}
	l.bc.Over(l.match.ID, res)

	if l.opened {
		closed := store.Closed{
			MatchID:  res.MatchID,
			EndDate:  res.EndDate,
			WinnerID: res.WinnerID,
			Reason:   string(res.Reason),
			Score:    res.Score,
		}
		l.records <- record{name: "close", fn: func(ctx context.Context) error {
			return l.recorder.MatchClosed(ctx, closed)
		}}
	}
	close(l.records)

	l.bc.TearDown(l.match.ID)
	l.log.Info("match finished",
		slog.String("reason", string(res.Reason)),
		slog.String("winner_id", res.WinnerID),
		slog.Any("score", res.Score))

	if l.onFinish != nil {
		l.onFinish(res)
	}
}

// drainRecords runs persistence calls in order, off the tick path.
func (l *Loop) drainRecords() {
	defer close(l.recDone)
	for r := range l.records {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.fn(ctx); err != nil {
			l.log.Error("failed to record match", slog.String("record", r.name), slog.Any("error", err))
		}
		cancel()
	}
}
