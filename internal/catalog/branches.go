package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const seasonPrefix = "season-"

// BuildIdentifier derives the stable project key from branch, week date and
// order. Hyphens are normalized to underscores so the identifier stays
// hyphen-free and filesystem-safe.
func BuildIdentifier(branch string, order int, date time.Time) string {
	raw := fmt.Sprintf("%s-%s-%d", branch, date.Format("2006-01-02"), order)
	return strings.ReplaceAll(raw, "-", "_")
}

// SeasonNumber derives the season integer from a branch name. The primary
// branch maps to season 1; season-<N> branches map to N. Unrecognized names
// map to 0.
func SeasonNumber(branch, primary string) int {
	if branch == primary {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(branch, seasonPrefix))
	if err != nil {
		return 0
	}
	return n
}

// FilterSortBranches keeps the primary branch and season-<N> branches,
// dropping everything else, and sorts the primary first followed by
// ascending season number.
func FilterSortBranches(names []string, primary string) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if name == primary {
			kept = append(kept, name)
			continue
		}
		suffix := strings.TrimPrefix(name, seasonPrefix)
		if suffix == name {
			continue
		}
		if _, err := strconv.Atoi(suffix); err != nil {
			continue
		}
		kept = append(kept, name)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i] == primary {
			return true
		}
		if kept[j] == primary {
			return false
		}
		return SeasonNumber(kept[i], primary) < SeasonNumber(kept[j], primary)
	})
	return kept
}
