package pong

import (
	"math"
	"time"

	"golang.org/x/exp/rand"

	"pongarena/internal/geometry"
)

type Status int

const (
	Forming Status = iota
	InProgress
	Finished
)

func (s Status) String() string {
	switch s {
	case Forming:
		return "forming"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Match is the authoritative state of one game. It is not safe for
// concurrent use: only the owning Loop calls into it.
type Match struct {
	ID        string
	QueueKind string
	BeginDate time.Time
	Status    Status

	rules    Rules
	resolver Resolver
	state    GameState
	rng      *rand.Rand
}

// NewMatch sets up both paddles and serves the ball. Two matches created
// with the same seed and fed the same inputs produce the same snapshots.
func NewMatch(id, kind string, players [2]string, rules Rules, seed uint64) *Match {
	m := &Match{
		ID:        id,
		QueueKind: kind,
		Status:    Forming,
		rules:     rules,
		resolver:  Resolver{Rules: rules},
		rng:       rand.New(rand.NewSource(seed)),
	}
	for i, id := range players {
		side := Side(i)
		m.state.Players[i] = Player{
			ID:   id,
			Side: side,
			Bar:  rules.startingBar(side),
		}
	}
	m.serve(Side(m.rng.Intn(2)))
	return m
}

// ApplyInput overwrites the stored input of a player.
func (m *Match) ApplyInput(playerID string, in PlayerInput) error {
	side, ok := m.state.PlayerSide(playerID)
	if !ok {
		return &InvalidInputError{PlayerID: playerID, Reason: "player is not in this match"}
	}
	m.state.Players[side].Input = in
	return nil
}

// Advance runs one simulation step of dt seconds and returns the new snapshot.
func (m *Match) Advance(dt float64) GameState {
	if dt > 0 && !math.IsNaN(dt) {
		var bars [2]geometry.Rectangle
		for i := range m.state.Players {
			m.movePaddle(&m.state.Players[i], dt)
			bars[i] = m.state.Players[i].Bar
		}

		res := m.resolver.Resolve(m.state.Ball, bars, dt)
		m.state.Ball = res.Ball
		if res.Scored {
			m.state.Players[res.Scorer].Score++
			m.serve(res.Scorer.Opponent())
		}
	}
	m.state.Tick++
	return m.state
}

func (m *Match) Snapshot() GameState {
	return m.state
}

// Winner reports the first player to reach the winning score.
func (m *Match) Winner() (Player, bool) {
	for _, p := range m.state.Players {
		if p.Score >= m.rules.WinningScore {
			return p, true
		}
	}
	return Player{}, false
}

// movePaddle keeps the bar inside the arena whatever the input says.
func (m *Match) movePaddle(p *Player, dt float64) {
	dy := 0.0
	if p.Input.Up {
		dy -= m.rules.PaddleSpeed * dt
	}
	if p.Input.Down {
		dy += m.rules.PaddleSpeed * dt
	}
	if dy == 0 {
		return
	}
	maxTop := math.Max(m.rules.ArenaHeight-p.Bar.Height(), 0)
	top := geometry.Clamp(p.Bar.TopLeft.Y+dy, 0, maxTop)
	p.Bar = p.Bar.Translate(geometry.Vector2d{Y: top - p.Bar.TopLeft.Y})
}

// serve puts the ball back in the centre heading towards the given side at
// serve speed, with a random angle inside the serve envelope.
func (m *Match) serve(towards Side) {
	angle := (m.rng.Float64()*2 - 1) * m.rules.ServeAngle
	dir := 1.0
	if towards == Left {
		dir = -1
	}
	m.state.Ball = Ball{
		Position: m.rules.center(),
		Velocity: geometry.Vector2d{
			X: dir * m.rules.ServeSpeed * math.Cos(angle),
			Y: m.rules.ServeSpeed * math.Sin(angle),
		},
	}
}
