package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/srg/blegate/bridge"
	"golang.org/x/term"
)

// statusPrinter writes lifecycle lines, colored when out is a terminal.
type statusPrinter struct {
	out    io.Writer
	colors map[bridge.Status]*color.Color
	dim    *color.Color
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	p := &statusPrinter{
		out: out,
		colors: map[bridge.Status]*color.Color{
			bridge.StatusStopped:       color.New(color.FgRed),
			bridge.StatusStarting:      color.New(color.FgYellow),
			bridge.StatusStarted:       color.New(color.FgGreen),
			bridge.StatusUserConnected: color.New(color.FgCyan, color.Bold),
		},
		dim: color.New(color.Faint),
	}

	if !isTerminal(out) {
		for _, c := range p.colors {
			c.DisableColor()
		}
		p.dim.DisableColor()
	} else {
		for _, c := range p.colors {
			c.EnableColor()
		}
		p.dim.EnableColor()
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Print writes one status line.
func (p *statusPrinter) Print(st bridge.Status) {
	c, ok := p.colors[st]
	if !ok {
		c = p.dim
	}
	fmt.Fprintf(p.out, "%s %s\n", p.dim.Sprint("status:"), c.Sprint(st.String()))
}

// Listening writes where clients can reach the server.
func (p *statusPrinter) Listening(addr bridge.Address, interfaces []string) {
	fmt.Fprintf(p.out, "Listening on %s\n", addr.String())
	for _, ip := range interfaces {
		fmt.Fprintf(p.out, "  %s\n", p.dim.Sprintf("ws://%s:%s/", ip, formatPort(addr.Port)))
	}
}

// formatPort renders a port for interface listings.
func formatPort(port int) string {
	if port == 0 {
		return "<port>"
	}
	return strconv.Itoa(port)
}
