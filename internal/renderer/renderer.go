// Package renderer draws match snapshots as text for spectators.
package renderer

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"pongarena/internal/ansii"
	"pongarena/internal/pong"
)

const targetFps = 30.0

// Frame maps the arena onto Cols x Rows character cells.
type Frame struct {
	Cols        int
	Rows        int
	ArenaWidth  float64
	ArenaHeight float64
	Color       bool
}

// FitTerminal sizes a frame to a terminal, leaving room for the score line
// and the border.
func FitTerminal(width, height int, rules pong.Rules) Frame {
	return Frame{
		Cols:        max(width-2, 1),
		Rows:        max(height-4, 1),
		ArenaWidth:  rules.ArenaWidth,
		ArenaHeight: rules.ArenaHeight,
		Color:       true,
	}
}

func (f Frame) col(x float64) int {
	return clamp(int(math.Floor(x/f.ArenaWidth*float64(f.Cols))), f.Cols)
}

func (f Frame) row(y float64) int {
	return clamp(int(math.Floor(y/f.ArenaHeight*float64(f.Rows))), f.Rows)
}

// lastRow is the row holding the bottom edge y. An edge sitting exactly on a
// row boundary belongs to the row above.
func (f Frame) lastRow(y float64) int {
	return clamp(int(math.Ceil(y/f.ArenaHeight*float64(f.Rows)))-1, f.Rows)
}

func clamp(v, n int) int {
	return min(max(v, 0), n-1)
}

func (f Frame) paint(text string, style ansii.ANSI) string {
	if !f.Color {
		return text
	}
	return ansii.Paint(text, style)
}

// Draw writes the score line and the bordered arena. Players[0] is drawn on
// the left.
func (f Frame) Draw(b *strings.Builder, s pong.GameState) {
	if f.Cols <= 0 || f.Rows <= 0 || f.ArenaWidth <= 0 || f.ArenaHeight <= 0 {
		return
	}

	cells := make([][]string, f.Rows)
	for r := range cells {
		cells[r] = make([]string, f.Cols)
		for c := range cells[r] {
			cells[r][c] = " "
		}
	}

	for _, p := range s.Players {
		bar := p.Bar
		top, bottom := f.row(bar.TopLeft.Y), max(f.lastRow(bar.BottomRight.Y), f.row(bar.TopLeft.Y))
		for r := top; r <= bottom; r++ {
			for c := f.col(bar.TopLeft.X); c <= f.col(bar.BottomRight.X); c++ {
				cells[r][c] = f.paint(ansii.Blocks.Block, ansii.Colors.Cyan)
			}
		}
	}
	ball := s.Ball.Position
	cells[f.row(ball.Y)][f.col(ball.X)] = f.paint(ansii.Blocks.Ball, ansii.Colors.Purple)

	fmt.Fprintf(b, "%s %d : %d %s  tick %d\n",
		short(s.Players[pong.Left].ID), s.Players[pong.Left].Score,
		s.Players[pong.Right].Score, short(s.Players[pong.Right].ID), s.Tick)
	border := "+" + strings.Repeat("-", f.Cols) + "+\n"
	b.WriteString(border)
	for _, row := range cells {
		b.WriteString("|")
		b.WriteString(strings.Join(row, ""))
		b.WriteString("|\n")
	}
	b.WriteString(border)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Spectator redraws a terminal with the latest snapshot, at most targetFps
// times a second.
type Spectator struct {
	W     io.Writer
	Frame Frame
	last  time.Time
}

func (sp *Spectator) Show(s pong.GameState) error {
	now := time.Now()
	if !sp.last.IsZero() && now.Sub(sp.last) < time.Second/targetFps {
		return nil
	}
	sp.last = now

	var b strings.Builder
	b.WriteString(string(ansii.Screen.ClearScreen))
	b.WriteString(string(ansii.Screen.PlaceCursor(1, 1)))
	sp.Frame.Draw(&b, s)
	_, err := io.WriteString(sp.W, b.String())
	return err
}

// Hide and Restore bracket a spectating session.
func (sp *Spectator) Hide() {
	io.WriteString(sp.W, string(ansii.Screen.HideCursor))
}

func (sp *Spectator) Restore() {
	io.WriteString(sp.W, string(ansii.Screen.ShowCursor))
}
