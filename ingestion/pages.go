package ingestion

import (
	"context"
	"time"

	"github.com/poiesic/lorekeep/chunking"
	"github.com/poiesic/lorekeep/core"
)

// PageFailure describes one page or PDF whose ingestion failed.
type PageFailure struct {
	URI   string `json:"uri"`
	Label string `json:"label"`
	Error string `json:"error"`
}

// PagesResult summarizes an IngestPages call.
type PagesResult struct {
	Sources  []*core.KnowledgeSource `json:"sources"`
	Skipped  int                     `json:"skipped"`
	Failures []PageFailure           `json:"failures,omitempty"`
}

// IngestPages ingests crawled pages and their PDF attachments.
//
// Every page with enough main text becomes a URL source and every PDF with
// enough text a FILE source. Short content is skipped and counted. A failing
// page is recorded in the result and does not stop the batch. A PDF linked
// from several pages is ingested once. When nothing could be ingested the
// error is core.ErrInsufficientContent.
func (p *Pipeline) IngestPages(ctx context.Context, tenantID string, pages []core.Page) (*PagesResult, error) {
	if err := core.ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	result := &PagesResult{}
	seenPDFs := make(map[string]struct{})

	ingest := func(doc Document) error {
		source, err := p.Ingest(ctx, doc)
		if err == nil {
			result.Sources = append(result.Sources, source)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.logger.Warn("page ingestion failed", "tenant", tenantID, "uri", doc.URI, "err", err)
		result.Failures = append(result.Failures, PageFailure{URI: doc.URI, Label: doc.Label, Error: err.Error()})
		return nil
	}

	for i := range pages {
		page := &pages[i]

		if chunking.HasMinimumContent(page.MainText) {
			if err := ingest(pageDocument(tenantID, page)); err != nil {
				return result, err
			}
		} else {
			result.Skipped++
		}

		for j := range page.PDFs {
			pdf := &page.PDFs[j]
			if pdf.URL != "" {
				if _, ok := seenPDFs[pdf.URL]; ok {
					continue
				}
				seenPDFs[pdf.URL] = struct{}{}
			}

			text := pdf.Text()
			if !chunking.HasMinimumContent(text) {
				result.Skipped++
				continue
			}
			if err := ingest(pdfDocument(tenantID, page, pdf, text)); err != nil {
				return result, err
			}
		}
	}

	if len(result.Sources) == 0 {
		return result, core.ErrInsufficientContent
	}
	return result, nil
}

func pageDocument(tenantID string, page *core.Page) Document {
	md := map[string]any{}
	if page.FetchedAt != nil {
		md["fetchedAt"] = page.FetchedAt.UTC().Format(time.RFC3339)
	}
	if page.Lang != "" {
		md["lang"] = page.Lang
	}
	if page.Meta.Description != "" {
		md["description"] = page.Meta.Description
	}

	label := page.Label()
	return Document{
		TenantID: tenantID,
		Label:    label,
		URI:      page.URI(),
		Kind:     core.SourceKindURL,
		Title:    label,
		Body:     core.MarkdownDocument(label, page.MainText),
		Metadata: md,
	}
}

func pdfDocument(tenantID string, page *core.Page, pdf *core.PDF, text string) Document {
	md := map[string]any{
		"pageCount": pdf.NumPages(),
	}
	if src := page.URI(); src != "" {
		md["sourcePage"] = src
	}

	label := pdf.Label()
	return Document{
		TenantID: tenantID,
		Label:    label,
		URI:      pdf.URL,
		Kind:     core.SourceKindFile,
		Title:    label,
		Body:     core.MarkdownDocument(label, text),
		Metadata: md,
	}
}
