// Package weekly holds the conventions of the 52-week study plan: how a week's issue is titled and what its body
// contains.
package weekly

import (
	"fmt"
	"regexp"
	"strconv"
)

// WeeksPerYear is the number of weekly issues in a plan
const WeeksPerYear = 52

const (
	// CreateRoadmap is the roadmap name used when the weekly issues are first created
	CreateRoadmap = "Toss DE Roadmap"
	// RetitleRoadmap is the roadmap name existing weekly issues are rewritten to
	RetitleRoadmap = "Enhancing DE skill Roadmap"
)

var titlePattern = regexp.MustCompile(`^Week (\d{2})$`)

// Title returns the issue title for week, e.g. "Week 07"
func Title(week int) string {
	return fmt.Sprintf("Week %02d", week)
}

// Body returns the checklist body for week under the named roadmap
func Body(week int, roadmap string) string {
	return fmt.Sprintf("📆 **Week %d - %s**\n\n", week, roadmap) +
		"- [ ] Organize goals\n" +
		"- [ ] Checklist of main tasks\n" +
		"- [ ] Record deliverables\n\n" +
		"🔁 Weekly completion report due Sunday"
}

// ParseTitle extracts the week number from a weekly issue title. Only "Week " followed by exactly two digits and
// nothing else qualifies
func ParseTitle(title string) (int, bool) {
	m := titlePattern.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	week, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return week, true
}
