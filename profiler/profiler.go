// Package profiler collects the lightweight runtime diagnostics the
// teacher's vm/profiling.go exposes (instruction hot spots, write-barrier
// counts) rendered through go-humanize instead of raw integers, since an
// embedded VM has no business pulling in a structured-logging library
// for its hot path.
package profiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Profiler counts per-instruction-pointer dispatch frequency and write
// barrier invocations across a run.
type Profiler struct {
	counts       map[int]int
	writeBarrier int
	dispatched   int
}

func New() *Profiler {
	return &Profiler{counts: make(map[int]int)}
}

// Observe records one dispatch of the instruction at ip.
func (p *Profiler) Observe(ip int) {
	p.dispatched++
	p.counts[ip]++
}

func (p *Profiler) WriteBarrier() { p.writeBarrier++ }

// HotSpot is one entry of GetHotSpots' output.
type HotSpot struct {
	IP    int
	Count int
}

// HotSpots returns the n most-frequently-dispatched instruction
// pointers, descending by count.
func (p *Profiler) HotSpots(n int) []HotSpot {
	spots := make([]HotSpot, 0, len(p.counts))
	for ip, c := range p.counts {
		spots = append(spots, HotSpot{IP: ip, Count: c})
	}
	sort.Slice(spots, func(i, j int) bool {
		if spots[i].Count != spots[j].Count {
			return spots[i].Count > spots[j].Count
		}
		return spots[i].IP < spots[j].IP
	})
	if n >= 0 && n < len(spots) {
		spots = spots[:n]
	}
	return spots
}

// Render produces a short human-readable summary, the way the teacher's
// GetPerformanceReport does for its own CLI.
func (p *Profiler) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "instructions dispatched: %s\n", humanize.Comma(int64(p.dispatched)))
	fmt.Fprintf(&b, "write barriers fired:    %s\n", humanize.Comma(int64(p.writeBarrier)))
	for _, hs := range p.HotSpots(5) {
		fmt.Fprintf(&b, "  ip=%-6d %s hits\n", hs.IP, humanize.Comma(int64(hs.Count)))
	}
	return b.String()
}
