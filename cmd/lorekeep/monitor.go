package main

import (
	"fmt"
	"io"
	"time"

	"github.com/poiesic/lorekeep/search"
	"github.com/poiesic/lorekeep/vectorindex"
)

// traceMonitor prints every retrieval step.
type traceMonitor struct {
	w     io.Writer
	start time.Time
}

var _ search.SearchMonitor = (*traceMonitor)(nil)

func newTraceMonitor(w io.Writer) *traceMonitor {
	return &traceMonitor{w: w}
}

func (m *traceMonitor) Start(tenantID, question string) {
	m.start = time.Now()
	fmt.Fprintf(m.w, "tenant %s: %q\n", tenantID, question)
}

func (m *traceMonitor) AfterEmbedding(dimension int) {
	fmt.Fprintf(m.w, "  embedded question (%d dims) in %s\n", dimension, time.Since(m.start))
}

func (m *traceMonitor) AfterIndexSearch(matches []vectorindex.Match) {
	fmt.Fprintf(m.w, "  index returned %d matches\n", len(matches))
	for _, match := range matches {
		fmt.Fprintf(m.w, "    %0.3f %s #%d (source %s)\n",
			match.Score, match.Metadata.Label, match.Metadata.ChunkIndex, match.Metadata.KnowledgeSourceID)
	}
}

func (m *traceMonitor) BelowMinScore(match vectorindex.Match) {
	fmt.Fprintf(m.w, "  dropped %s #%d: score %0.3f below minimum\n", match.Metadata.Label, match.Metadata.ChunkIndex, match.Score)
}

func (m *traceMonitor) Finish(matches []vectorindex.Match) {
	fmt.Fprintf(m.w, "  kept %d matches in %s\n\n", len(matches), time.Since(m.start))
}
