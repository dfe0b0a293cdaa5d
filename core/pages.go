// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"sort"
	"strings"
	"time"
)

// Page is a crawled web page as delivered by an external fetcher.
// Text and metadata are already extracted.
type Page struct {
	PageURL      string     `json:"page_url"`
	CanonicalURL string     `json:"canonical_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	MainText     string     `json:"main_text"`
	Lang         string     `json:"lang,omitempty"`
	FetchedAt    *time.Time `json:"fetched_at,omitempty"`
	Meta         PageMeta   `json:"meta"`
	Headings     Headings   `json:"headings"`
	PDFs         []PDF      `json:"pdfs,omitempty"`
}

// PageMeta holds the HTML meta tags the fetcher extracted.
type PageMeta struct {
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Headings holds the page's h1-h3 texts in document order.
type Headings struct {
	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
	H3 []string `json:"h3,omitempty"`
}

// PDF is a document linked from a page.
type PDF struct {
	URL       string    `json:"pdf_url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"` // pre-extracted full text, preferred when present
	PageCount int       `json:"page_count,omitempty"`
	Pages     []PDFPage `json:"pages,omitempty"`
}

// PDFPage is the text of a single PDF page.
type PDFPage struct {
	Number int    `json:"page_no"`
	Text   string `json:"text"`
}

// URI returns the page's dedup key: the canonical URL, else the fetched URL.
func (p *Page) URI() string {
	if p.CanonicalURL != "" {
		return p.CanonicalURL
	}
	return p.PageURL
}

// Label returns the page title, falling back to its URI.
func (p *Page) Label() string {
	if t := strings.TrimSpace(p.Title); t != "" {
		return t
	}
	return p.URI()
}

// Label returns the PDF title, else its URL, else a generic name.
func (d *PDF) Label() string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	if d.URL != "" {
		return d.URL
	}
	return "PDF document"
}

// Text returns the document body. Pre-extracted content wins; otherwise
// the pages are ordered by page number and joined by blank lines.
func (d *PDF) Text() string {
	if strings.TrimSpace(d.Content) != "" {
		return d.Content
	}
	pages := make([]PDFPage, len(d.Pages))
	copy(pages, d.Pages)
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// NumPages returns the declared page count, else the number of pages present.
func (d *PDF) NumPages() int {
	if d.PageCount > 0 {
		return d.PageCount
	}
	return len(d.Pages)
}

// MarkdownDocument renders a titled body the way every source is stored.
func MarkdownDocument(title, body string) string {
	return "# " + title + "\n\n" + body
}
