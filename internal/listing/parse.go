// Package listing parses the line-of-coverage list and the plan listing out of
// free-form stage output, and formats them back into the same line grammar.
package listing

import (
	"regexp"
	"strconv"
	"strings"

	"planextract/internal/domain"
)

var (
	locRe = regexp.MustCompile(`(?is)Basic Info::(?:Line of Coverage|LOC_Temp)::\[(.*?)\]`)

	// <index>::Plans::<loc>::<plan>::<optional rate>::[<optional pages>]
	planRe = regexp.MustCompile(`(?i)(\d+)\s*::\s*Plans\s*::\s*([^:\n]+?)\s*::\s*([^:\n]+?)\s*::\s*(\$?[0-9][^:\[\n]*)?(?:\s*(?:::)?\s*\[([^\]\n]*)\])?`)

	pageNumRe = regexp.MustCompile(`\d+`)
)

// ParseLineOfCoverage returns the LOC tags of the first
// "Basic Info::Line of Coverage::[...]" (or LOC_Temp) block in text, trimmed,
// without empty entries and without "Other".
func ParseLineOfCoverage(text string) []string {
	m := locRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []string
	for _, p := range strings.Split(m[1], ",") {
		p = strings.TrimSpace(p)
		if p == "" || strings.EqualFold(p, "other") {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ParsePlanListing scans every plan listing line in text. Lines that do not
// match the grammar, such as "### Medical" headers, are ignored. Plans are
// de-duplicated by trimmed name within a LOC, keeping the first occurrence.
func ParsePlanListing(text string) *domain.Listing {
	out := domain.NewListing()
	for _, m := range planRe.FindAllStringSubmatch(text, -1) {
		loc := strings.TrimSpace(m[2])
		plan := strings.TrimSpace(m[3])
		if loc == "" || plan == "" {
			continue
		}
		out.Add(loc, domain.PlanEntry{Name: plan, Pages: parsePages(m[5])})
	}
	return out
}

func parsePages(raw string) []int {
	var pages []int
	for _, s := range pageNumRe.FindAllString(raw, -1) {
		n, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		pages = append(pages, n)
	}
	return pages
}
