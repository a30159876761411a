package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/contract/pkg/service"
	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner with the release version.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	// Using a subtle gradient-like color scheme (Indigo/Violet)
	s1 := termenv.String("                _                  _   ").Foreground(p.Color("#818cf8"))
	s2 := termenv.String("  ___ ___  _ _ | |_ _ _ __ _ __ | |_ ").Foreground(p.Color("#a78bfa"))
	s3 := termenv.String(" / _/ _ \\| ' \\|  _| '_/ _` / _||  _|").Foreground(p.Color("#c084fc"))
	s4 := termenv.String(" \\__\\___/|_||_|\\__|_| \\__,_\\__| \\__|").Foreground(p.Color("#e879f9"))
	v := termenv.String("  v" + strings.TrimSpace(version)).Faint()

	fmt.Fprintln(w)
	fmt.Fprintln(w, s1)
	fmt.Fprintln(w, s2)
	fmt.Fprintln(w, s3)
	fmt.Fprintln(w, s4)
	fmt.Fprintln(w, v)
	fmt.Fprintln(w)
}

// Status renders a check result as a single coloured line.
func Status(res service.Result) string {
	return StatusWithProfile(termenv.ColorProfile(), res)
}

// StatusWithProfile is Status for an explicit color profile.
func StatusWithProfile(p termenv.Profile, res service.Result) string {
	if res.Valid {
		return p.String("PASS").Foreground(p.Color("#22c55e")).Bold().String()
	}
	mark := p.String("FAIL").Foreground(p.Color("#ef4444")).Bold().String()
	return mark + " " + res.Message
}
