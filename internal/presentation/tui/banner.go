package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{` __      __                       _       _   `, "#34d399"},
	{` \ \    / /_ _ _  _ _ __  ___ (_)_ _ | |_ `, "#2dd4bf"},
	{`  \ \/\/ / _' | || | '_ \/ _ \| | ' \|  _|`, "#22d3ee"},
	{`   \_/\_/\__,_|\_, | .__/\___/|_|_||_|\__|`, "#38bdf8"},
	{`                |__/|_|                      `, "#60a5fa"},
}

// PrintBanner writes the waypoint banner followed by the version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}

// Status prints a one-line colored status message.
// ok selects green, otherwise red.
func Status(w io.Writer, ok bool, format string, args ...any) {
	p := termenv.ColorProfile()
	color, mark := "#ef4444", "✗"
	if ok {
		color, mark = "#22c55e", "✓"
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, termenv.String(mark+" "+msg).Foreground(p.Color(color)))
}
