// Package style provides the colors, icons and time stamps shared by every
// piece of terminal output.
package style

import (
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	Ember  = lipgloss.Color("#E8590C")
	Ash    = lipgloss.Color("#868E96")
	Clay   = lipgloss.Color("#C2255C")
	Cyan   = lipgloss.Color("#1098AD")
	Green  = lipgloss.Color("#2F9E44")
	Red    = lipgloss.Color("#E03131")
	Yellow = lipgloss.Color("#F59F00")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Arrow   = "→"
)

// StampLayout is the clock format printed in front of lifecycle lines.
const StampLayout = "15:04:05"

// Stamp renders t as the bracketed clock prefix, e.g. "[09:41:07]".
func Stamp(t time.Time) string {
	return "[" + t.Format(StampLayout) + "]"
}

// Duration renders d the way lifecycle lines report it: milliseconds below a
// second, then seconds with two decimals.
func Duration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + " ms"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 2, 64) + " s"
}
