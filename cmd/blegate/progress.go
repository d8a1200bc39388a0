package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// scanProgress renders a countdown line while a scan runs:
//
//	p := newScanProgress(os.Stderr, "Scanning", d, "Processing results")
//	p.Start()
//	defer p.Stop()
//	devices.ScanWithProgress(ctx, d, p.Callback())
//
// The line is cleared as soon as a stop phase is reported or Stop is called.
type scanProgress struct {
	out        io.Writer
	phase      atomic.Value // string
	stopPhases map[string]struct{}
	duration   time.Duration

	startTime time.Time
	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}
}

func newScanProgress(out io.Writer, phase string, duration time.Duration, stopPhases ...string) *scanProgress {
	stopSet := make(map[string]struct{}, len(stopPhases))
	for _, p := range stopPhases {
		stopSet[p] = struct{}{}
	}
	p := &scanProgress{
		out:        out,
		stopPhases: stopSet,
		duration:   duration,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.phase.Store(phase)
	return p
}

// Start begins rendering in a background goroutine. Call at most once.
func (p *scanProgress) Start() {
	p.startTime = time.Now()
	p.started.Store(true)
	p.render(p.phase.Load().(string), p.remaining())

	ticker := time.NewTicker(progressUpdateInterval)
	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				phase := p.phase.Load().(string)
				if _, stop := p.stopPhases[phase]; stop {
					return
				}
				p.render(phase, p.remaining())
			}
		}
	}()
}

// remaining rounds the time left to the nearest second, never below zero.
func (p *scanProgress) remaining() int {
	left := p.duration - time.Since(p.startTime)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds() + 0.5)
}

func (p *scanProgress) render(phase string, seconds int) {
	if seconds > 0 {
		fmt.Fprintf(p.out, "\r%s %ds   ", phase, seconds)
	} else {
		fmt.Fprintf(p.out, "\r%s...   ", phase)
	}
}

// Callback returns a phase reporter; reaching a stop phase stops the printer.
func (p *scanProgress) Callback() func(phase string) {
	return func(phase string) {
		p.phase.Store(phase)
		if _, stop := p.stopPhases[phase]; stop {
			p.Stop()
		}
	}
}

// Stop ends rendering and clears the line. Safe to call repeatedly.
func (p *scanProgress) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		if p.started.Load() {
			<-p.done
		}
		fmt.Fprint(p.out, clearLineSequence)
	})
}
