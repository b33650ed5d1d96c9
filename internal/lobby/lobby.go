package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// PairFunc is called on the queue's goroutine for every pairing, before the
// next command for that queue is handled. It must not call back into the
// same queue.
type PairFunc func(Pairing)

// Matchmaker owns one FIFO queue per kind. Each queue is only touched by its
// own goroutine, so entering, leaving and pairing on one kind are serialized
// without blocking the other kinds.
type Matchmaker struct {
	queues   map[QueueKind]*queue
	registry *registry
	log      *slog.Logger

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type queue struct {
	kind     QueueKind
	waiting  []string
	commands chan command
	registry *registry
	onPair   PairFunc
	log      *slog.Logger
}

func NewMatchmaker(kinds []QueueKind, onPair PairFunc, logger *slog.Logger) *Matchmaker {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Matchmaker{
		queues:   make(map[QueueKind]*queue, len(kinds)),
		registry: newRegistry(),
		log:      logger,
		quit:     make(chan struct{}),
	}
	for _, kind := range kinds {
		if _, ok := m.queues[kind]; ok {
			continue
		}
		q := &queue{
			kind:     kind,
			commands: make(chan command),
			registry: m.registry,
			onPair:   onPair,
			log:      logger.With(slog.String("queue_kind", string(kind))),
		}
		m.queues[kind] = q
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			q.run(m.quit)
		}()
	}
	return m
}

// Kinds lists the served queue kinds in a stable order.
func (m *Matchmaker) Kinds() []QueueKind {
	kinds := make([]QueueKind, 0, len(m.queues))
	for k := range m.queues {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Enter puts the player in the queue. Entering a queue the player already
// waits in is a no-op. When the entry completes a pair the pairing is
// returned, whichever of the two players caused it.
func (m *Matchmaker) Enter(ctx context.Context, playerID string, kind QueueKind) (*Pairing, error) {
	r, err := m.submit(ctx, kind, command{op: opEnter, playerID: playerID})
	if err != nil {
		return nil, err
	}
	return r.pairing, r.err
}

// Leave removes a waiting player. Leaving a queue the player is not in is
// not an error.
func (m *Matchmaker) Leave(ctx context.Context, playerID string, kind QueueKind) error {
	_, err := m.submit(ctx, kind, command{op: opLeave, playerID: playerID})
	return err
}

// LeaveAll removes the player from every queue, used when the player's
// connection goes away.
func (m *Matchmaker) LeaveAll(ctx context.Context, playerID string) error {
	for _, kind := range m.Kinds() {
		if err := m.Leave(ctx, playerID, kind); err != nil {
			return err
		}
	}
	return nil
}

// Release makes players eligible for matchmaking again once their match is
// over, whatever the outcome.
func (m *Matchmaker) Release(playerIDs ...string) {
	m.registry.release(playerIDs...)
}

func (m *Matchmaker) InMatch(playerID string) bool {
	return m.registry.inMatch(playerID)
}

// Sizes reports how many eligible players wait in each queue.
func (m *Matchmaker) Sizes(ctx context.Context) (map[QueueKind]int, error) {
	sizes := make(map[QueueKind]int, len(m.queues))
	for _, kind := range m.Kinds() {
		r, err := m.submit(ctx, kind, command{op: opSize})
		if err != nil {
			return nil, err
		}
		sizes[kind] = r.size
	}
	return sizes, nil
}

// Close stops every queue goroutine. Waiting players are dropped.
func (m *Matchmaker) Close() {
	m.closeOnce.Do(func() { close(m.quit) })
	m.wg.Wait()
}

func (m *Matchmaker) submit(ctx context.Context, kind QueueKind, cmd command) (reply, error) {
	q, ok := m.queues[kind]
	if !ok {
		return reply{}, fmt.Errorf("%w: %q", ErrUnknownQueue, kind)
	}
	if err := ctx.Err(); err != nil {
		return reply{}, err
	}
	cmd.reply = make(chan reply, 1)

	select {
	case q.commands <- cmd:
	case <-m.quit:
		return reply{}, ErrClosed
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

func (q *queue) run(quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case cmd := <-q.commands:
			cmd.reply <- q.handle(cmd)
		}
	}
}

func (q *queue) handle(cmd command) reply {
	q.prune()

	switch cmd.op {
	case opEnter:
		if q.registry.inMatch(cmd.playerID) {
			return reply{err: ErrAlreadyInMatch}
		}
		if slices.Contains(q.waiting, cmd.playerID) {
			return reply{}
		}
		q.waiting = append(q.waiting, cmd.playerID)
		q.log.Debug("player entered queue", slog.String("player_id", cmd.playerID), slog.Int("waiting", len(q.waiting)))
		return reply{pairing: q.pair()}
	case opLeave:
		i := slices.Index(q.waiting, cmd.playerID)
		if i >= 0 {
			q.waiting = slices.Delete(q.waiting, i, i+1)
			q.log.Debug("player left queue", slog.String("player_id", cmd.playerID))
		}
		return reply{}
	default:
		return reply{size: len(q.waiting)}
	}
}

// prune drops players that were paired from another queue while waiting here.
func (q *queue) prune() {
	q.waiting = slices.DeleteFunc(q.waiting, q.registry.inMatch)
}

// pair takes the two longest waiting players. A claim only fails when one of
// them was paired elsewhere in the meantime; that entry is dropped and the
// next one is tried.
func (q *queue) pair() *Pairing {
	for len(q.waiting) >= 2 {
		a, b := q.waiting[0], q.waiting[1]
		if !q.registry.claim(a, b) {
			q.prune()
			continue
		}
		q.waiting = slices.Delete(q.waiting, 0, 2)

		p := Pairing{MatchID: uuid.NewString(), Kind: q.kind, Players: [2]string{a, b}}
		q.log.Info("players paired", slog.String("match_id", p.MatchID), slog.Any("players", p.Players))
		if q.onPair != nil {
			q.onPair(p)
		}
		return &p
	}
	return nil
}

// registry tracks which players are in a match across all queue kinds.
type registry struct {
	mu      sync.Mutex
	matched map[string]bool
}

func newRegistry() *registry {
	return &registry{matched: make(map[string]bool)}
}

// claim marks both players as matched, or neither of them.
func (r *registry) claim(a, b string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matched[a] || r.matched[b] {
		return false
	}
	r.matched[a] = true
	r.matched[b] = true
	return true
}

func (r *registry) release(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.matched, id)
	}
}

func (r *registry) inMatch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matched[id]
}
