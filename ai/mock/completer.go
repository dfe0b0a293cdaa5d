package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/lorekeep/ai"
)

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, echoes the first sentence of the user message.
	CompleteFunc func(ctx context.Context, system, user string) (string, error)

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// NewMockCompleter creates a mock completer with default behavior.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// WithCompleteFunc injects custom Complete behavior.
func (m *MockCompleter) WithCompleteFunc(fn func(ctx context.Context, system, user string) (string, error)) *MockCompleter {
	m.CompleteFunc = fn
	return m
}

// Complete returns the injected result or a one-line summary of user.
func (m *MockCompleter) Complete(ctx context.Context, system, user string, _ ...ai.CompletionOption) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, user)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, user)
	}

	line := strings.TrimSpace(user)
	if i := strings.IndexAny(line, ".!?\n"); i > 0 {
		line = line[:i]
	}
	return "Summary: " + line, nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Prompts returns the user messages received so far.
func (m *MockCompleter) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears the call count, recorded prompts and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.prompts = nil
	m.CompleteFunc = nil
}
