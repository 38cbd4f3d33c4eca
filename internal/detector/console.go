package detector

import (
	"fmt"
	"io"
	"sync"

	"github.com/tush8979/Adaptive-Intrusion-Detection-System/internal/models"
)

// Console verdict lines.
const (
	MaliciousLine = "🚨 Malicious traffic detected"
	NormalLine    = "✅ Normal traffic"
)

// ConsoleReporter prints one line per verdict.
type ConsoleReporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

// NewConsoleReporter writes verdict lines to w. Verbose lines also carry
// the endpoints and feature vector.
func NewConsoleReporter(w io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, verbose: verbose}
}

// Report implements Reporter.
func (c *ConsoleReporter) Report(v *models.Verdict) {
	line := NormalLine
	if v.Malicious {
		line = MaliciousLine
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.verbose {
		fmt.Fprintln(c.w, line)
		return
	}
	fmt.Fprintf(c.w, "%s  #%d %s %s:%d -> %s:%d features=%v\n",
		line, v.Sequence, v.Transport,
		v.SrcIP, v.SrcPort, v.DstIP, v.DstPort, v.Features)
}
