package listing

import (
	"fmt"
	"strconv"
	"strings"

	"planextract/internal/domain"
)

// FormatLineOfCoverage renders locs as a "Basic Info::Line of Coverage::[...]" line.
func FormatLineOfCoverage(locs []string) string {
	return "Basic Info::Line of Coverage::[" + strings.Join(locs, ", ") + "]"
}

// FormatPlanListing renders l as numbered plan listing lines, one per entry,
// in listing order. Rates are not tracked and are emitted as $0.00.
func FormatPlanListing(l *domain.Listing) string {
	var b strings.Builder
	i := 0
	for _, loc := range l.LOCs() {
		for _, e := range l.Plans(loc) {
			i++
			if i > 1 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d::Plans::%s::%s::$0.00::[%s]", i, loc, e.Name, joinPages(e.Pages))
		}
	}
	return b.String()
}

func joinPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ", ")
}
