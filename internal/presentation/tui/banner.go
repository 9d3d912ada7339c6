package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the topolab banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct{ text, color string }{
		{" _              _       _    ", "#34d399"},
		{"| |_ ___  _ __ | | __ _| |__ ", "#2dd4bf"},
		{"| __/ _ \\| '_ \\| |/ _` | '_ \\", "#22d3ee"},
		{"| || (_) | |_) | | (_| | |_) |", "#38bdf8"},
		{" \\__\\___/| .__/|_|\\__,_|_.__/", "#60a5fa"},
		{"         |_|                  ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status colors a node or project status for terminal output:
// green when started, opened or connected, grey otherwise.
func Status(s string) string {
	p := termenv.ColorProfile()
	switch s {
	case "started", "opened", "connected":
		return termenv.String(s).Foreground(p.Color("#22c55e")).Bold().String()
	case "":
		return ""
	default:
		return termenv.String(s).Foreground(p.Color("#9ca3af")).String()
	}
}
