package prompting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lorekeep/ai"
	"github.com/poiesic/lorekeep/core"
)

// DefaultPrompt is used when the pages reveal nothing about the site owner.
const DefaultPrompt = `You are a helpful support assistant.

Rules:
- Speak on behalf of the company ("we", "us", "our").
- Keep answers short and precise, at most two or three sentences.
- Use the search_knowledge_base tool to look up information.
- Stay professional and friendly.`

const rewriteSystemPrompt = "You are an expert in writing system prompts for customer support chatbots. " +
	"Reply with the prompt only, without any introduction."

// Generator builds system prompts.
type Generator struct {
	completer ai.Completer
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
	}
}

// NewGenerator creates a Generator. completer may be nil.
func NewGenerator(completer ai.Completer, opts ...Option) *Generator {
	g := &Generator{completer: completer, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "prompt-generator")
	return g
}

// Generate returns a system prompt for the site the pages were crawled from.
// It never fails: every problem degrades to Draft or DefaultPrompt.
func (g *Generator) Generate(ctx context.Context, pages []core.Page) string {
	profile := ExtractProfile(pages)
	if profile.Empty() {
		g.logger.Debug("no usable page data, using default prompt")
		return DefaultPrompt
	}

	draft := Draft(profile)
	if g.completer == nil {
		return draft
	}

	out, err := g.completer.Complete(ctx, rewriteSystemPrompt, rewriteRequest(profile, draft),
		ai.WithMaxTokens(800), ai.WithTemperature(0.7))
	if err != nil {
		g.logger.Warn("prompt rewrite failed, using draft", "company", profile.CompanyName, "err", err)
		return draft
	}
	if out = strings.TrimSpace(out); out == "" {
		return draft
	}
	g.logger.Info("generated system prompt", "company", profile.CompanyName)
	return out
}

// Draft renders a profile into a system prompt without a model.
func Draft(p Profile) string {
	name := p.CompanyName
	if name == "" {
		name = defaultCompanyName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the support assistant of %s.\n", name)
	if p.Description != "" {
		fmt.Fprintf(&b, "About us: %s\n", p.Description)
	}
	if len(p.Offerings) > 0 {
		fmt.Fprintf(&b, "Our main offerings: %s.\n", strings.Join(p.Offerings, ", "))
	}
	if len(p.Keywords) > 0 {
		fmt.Fprintf(&b, "Topics customers ask about: %s.\n", strings.Join(p.Keywords, ", "))
	}
	b.WriteString(`
Rules:
- Speak on behalf of the company ("we", "us", "our").
- Keep answers short and precise, at most two or three sentences.
- Use the search_knowledge_base tool to look up information.
- Stay professional and friendly.`)
	return b.String()
}

func rewriteRequest(p Profile, draft string) string {
	var b strings.Builder
	b.WriteString("Improve the following system prompt for a company's support chatbot.\n\n")
	fmt.Fprintf(&b, "Company: %s\n", p.CompanyName)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(p.Keywords, ", "))
	if len(p.Headings) > 0 {
		b.WriteString("Page headings:\n")
		for _, h := range p.Headings {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}
	b.WriteString("\nKeep the company perspective, short answers and the search_knowledge_base tool.\n\nDraft:\n")
	b.WriteString(draft)
	return b.String()
}
