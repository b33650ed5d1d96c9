package ansii

import (
	"fmt"

	"golang.org/x/term"
)

type ANSI string

const (
	reset       ANSI = "\033[0m"
	plain       ANSI = ""
	bold        ANSI = "\033[1m"
	red         ANSI = "\033[31m"
	green       ANSI = "\033[32m"
	yellow      ANSI = "\033[33m"
	purple      ANSI = "\033[35m"
	cyan        ANSI = "\033[36m"
	clearScreen ANSI = "\033[2J"
	hideCursor  ANSI = "\033[?25l"
	showCursor  ANSI = "\033[?25h"
)

type style struct {
	Reset ANSI
	Plain ANSI
	Bold  ANSI
}

type color struct {
	Red    ANSI
	Green  ANSI
	Yellow ANSI
	Purple ANSI
	Cyan   ANSI
}

type screen struct {
	ClearScreen ANSI
	HideCursor  ANSI
	ShowCursor  ANSI
}

type ascii struct {
	Block string
	Ball  string
}

var (
	Styles = style{Reset: reset, Plain: plain, Bold: bold}
	Colors = color{Red: red, Green: green, Yellow: yellow, Purple: purple, Cyan: cyan}
	Screen = screen{ClearScreen: clearScreen, HideCursor: hideCursor, ShowCursor: showCursor}
	Blocks = ascii{Block: "█", Ball: "●"}
)

// PlaceCursor moves the cursor to column x and row y, both starting at 1.
func (s screen) PlaceCursor(x, y int) ANSI {
	return ANSI(fmt.Sprintf("\033[%d;%dH", y, x))
}

// Paint wraps text in a style, or returns it untouched for Plain.
func Paint(text string, style ANSI) string {
	if style == plain {
		return text
	}
	return string(style) + text + string(reset)
}

// TermSize reports the size of the terminal behind fd. ok is false when fd
// is not a terminal.
func TermSize(fd int) (width, height int, ok bool) {
	if !term.IsTerminal(fd) {
		return 0, 0, false
	}
	width, height, err := term.GetSize(fd)
	if err != nil {
		return 0, 0, false
	}
	return width, height, true
}
