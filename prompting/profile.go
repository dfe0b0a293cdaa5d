package prompting

import (
	"strings"

	"github.com/poiesic/lorekeep/core"
)

const (
	maxHeadings        = 10
	maxKeywords        = 8
	maxOfferings       = 5
	maxOfferingLength  = 50
	defaultCompanyName = "the company"
)

var offeringHints = []string{
	"software", "app", "platform", "service", "solution", "system", "tool",
	"dashboard", "management", "tracking", "product",
}

// Profile is what the crawled pages reveal about the site owner.
type Profile struct {
	CompanyName string
	Description string
	Headings    []string
	Offerings   []string
	Keywords    []string
}

// Empty reports whether the pages yielded nothing usable.
func (p Profile) Empty() bool {
	return p.CompanyName == "" && p.Description == "" && len(p.Headings) == 0
}

// ExtractProfile derives a Profile from pages. The first page names the
// company and supplies the description; headings come from every page.
func ExtractProfile(pages []core.Page) Profile {
	if len(pages) == 0 {
		return Profile{}
	}
	first := pages[0]

	var headings []string
	for _, page := range pages {
		for _, group := range [][]string{page.Headings.H1, page.Headings.H2, page.Headings.H3} {
			for _, h := range group {
				if h = strings.TrimSpace(h); h != "" {
					headings = append(headings, h)
				}
			}
		}
	}

	description := strings.TrimSpace(first.Meta.Description)
	top := headings
	if len(top) > maxHeadings {
		top = top[:maxHeadings]
	}

	return Profile{
		CompanyName: CompanyName(first.Title),
		Description: description,
		Headings:    top,
		Offerings:   offerings(headings),
		Keywords:    Keywords(description+" "+strings.Join(top, " "), maxKeywords),
	}
}

// CompanyName returns the part of a page title before the first "|" and
// then before the first "-".
func CompanyName(title string) string {
	name, _, _ := strings.Cut(title, "|")
	name, _, _ = strings.Cut(name, "-")
	return strings.TrimSpace(name)
}

func offerings(headings []string) []string {
	var out []string
	for _, h := range headings {
		if len(h) >= maxOfferingLength {
			continue
		}
		lower := strings.ToLower(h)
		for _, hint := range offeringHints {
			if strings.Contains(lower, hint) {
				out = append(out, h)
				break
			}
		}
		if len(out) == maxOfferings {
			break
		}
	}
	return out
}
