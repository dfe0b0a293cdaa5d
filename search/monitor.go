package search

import "github.com/poiesic/lorekeep/vectorindex"

// SearchMonitor provides hooks to observe a retrieval.
// Implement this interface to trace intermediate steps, e.g. from a CLI.
type SearchMonitor interface {
	Start(tenantID, question string)
	AfterEmbedding(dimension int)
	AfterIndexSearch(matches []vectorindex.Match)
	BelowMinScore(match vectorindex.Match)
	Finish(matches []vectorindex.Match)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                     {}
func (n *noopMonitor) AfterEmbedding(_ int)                  {}
func (n *noopMonitor) AfterIndexSearch(_ []vectorindex.Match) {}
func (n *noopMonitor) BelowMinScore(_ vectorindex.Match)      {}
func (n *noopMonitor) Finish(_ []vectorindex.Match)           {}
