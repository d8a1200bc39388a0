package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScanProgress_StopPhaseClearsLine(t *testing.T) {
	var out bytes.Buffer
	p := newScanProgress(&out, "Scanning", 2*time.Second, "Processing results")
	p.Start()

	report := p.Callback()
	report("Scanning")
	report("Processing results")

	// Stop already ran through the callback; a second call is a no-op.
	p.Stop()

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "\rScanning 2s"), "got %q", text)
	assert.True(t, strings.HasSuffix(text, clearLineSequence))
	assert.Equal(t, 1, strings.Count(text, clearLineSequence))
}

func TestScanProgress_StopWithoutStart(t *testing.T) {
	var out bytes.Buffer
	p := newScanProgress(&out, "Scanning", time.Second)

	p.Stop()
	assert.Equal(t, clearLineSequence, out.String())
}

func TestScanProgress_ElapsedShowsEllipsis(t *testing.T) {
	var out bytes.Buffer
	p := newScanProgress(&out, "Scanning", 0)
	p.Start()
	p.Stop()

	assert.Contains(t, out.String(), "Scanning...")
}
