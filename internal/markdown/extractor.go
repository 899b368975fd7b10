// Package markdown parses branch READMEs into dated weeks of raw project
// records.
package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pzntech/showcase-crawler/internal/catalog"
)

// MonthTable maps lower-cased localized month names to calendar months.
type MonthTable map[string]time.Month

// IndonesianMonths returns the reference locale's month-name table.
func IndonesianMonths() MonthTable {
	return MonthTable{
		"januari":   time.January,
		"februari":  time.February,
		"maret":     time.March,
		"april":     time.April,
		"mei":       time.May,
		"juni":      time.June,
		"juli":      time.July,
		"agustus":   time.August,
		"september": time.September,
		"oktober":   time.October,
		"november":  time.November,
		"desember":  time.December,
	}
}

// ParseError reports an unparseable date token. It fails the whole branch,
// never the whole run.
type ParseError struct {
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized month token %q", e.Token)
}

var (
	headingPattern   = regexp.MustCompile(`^###\s+(\d{1,2})\s+(\p{L}+)\s+(\d{4})\s*$`)
	itemStartPattern = regexp.MustCompile(`^(\d+)\.\s+\[([^\]]*)\]`)
	creatorPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	bareLinkPattern  = regexp.MustCompile(`^\[(https?://[^\]]*)\]$`)
)

// Extractor turns README markdown into ordered RawWeeks.
type Extractor struct {
	months MonthTable
	render RenderFunc
}

// NewExtractor builds an Extractor with the given month table and description
// renderer. A nil table falls back to the Indonesian reference locale.
func NewExtractor(months MonthTable, render RenderFunc) *Extractor {
	if months == nil {
		months = IndonesianMonths()
	}
	return &Extractor{months: months, render: render}
}

// Parse scans content for week headings of the form "### D Month YYYY" and
// extracts each week's numbered project items. Weeks with zero extracted
// projects are dropped.
func (e *Extractor) Parse(content string) ([]catalog.RawWeek, error) {
	lines := strings.Split(content, "\n")

	var weeks []catalog.RawWeek
	i := 0
	for i < len(lines) {
		m := headingPattern.FindStringSubmatch(lines[i])
		if m == nil {
			i++
			continue
		}
		date, err := e.parseDate(m[1], m[2], m[3])
		if err != nil {
			return nil, err
		}
		segment, next := collectSegment(lines, i+1)
		projects, err := e.extractProjects(segment)
		if err != nil {
			return nil, err
		}
		if len(projects) > 0 {
			weeks = append(weeks, catalog.RawWeek{Date: date, Projects: projects})
		}
		i = next
	}
	return weeks, nil
}

func (e *Extractor) parseDate(dayTok, monthTok, yearTok string) (time.Time, error) {
	month, ok := e.months[strings.ToLower(monthTok)]
	if !ok {
		return time.Time{}, &ParseError{Token: monthTok}
	}
	day, _ := strconv.Atoi(dayTok)
	year, _ := strconv.Atoi(yearTok)
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
}

// collectSegment gathers the lines belonging to one week body, stopping at
// the next heading. Returns the segment and the index of the line it stopped
// on.
func collectSegment(lines []string, start int) ([]string, int) {
	end := start
	for end < len(lines) && !headingPattern.MatchString(lines[end]) {
		end++
	}
	return lines[start:end], end
}

func (e *Extractor) extractProjects(segment []string) ([]catalog.RawProject, error) {
	var projects []catalog.RawProject
	for _, block := range splitBlocks(segment) {
		project, ok, err := e.parseBlock(block)
		if err != nil {
			return nil, err
		}
		if ok {
			projects = append(projects, project)
		}
	}
	// Duplicate orders keep their encounter order; that is an author error
	// the pipeline does not try to fix.
	sort.SliceStable(projects, func(i, j int) bool { return projects[i].Order < projects[j].Order })
	return projects, nil
}

// splitBlocks groups segment lines into per-project chunks, each starting at
// a numbered "N. [" line. Lines before the first item are discarded. The
// joined chunk is the project's hashing block, so the grouping must be
// byte-stable for unchanged content.
func splitBlocks(segment []string) []string {
	var blocks []string
	var current []string
	started := false
	for _, line := range segment {
		if itemStartPattern.MatchString(strings.TrimSpace(line)) {
			if started {
				blocks = append(blocks, strings.Join(current, "\n"))
			}
			started = true
			current = []string{line}
			continue
		}
		if started {
			current = append(current, line)
		}
	}
	if started {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

func (e *Extractor) parseBlock(block string) (catalog.RawProject, bool, error) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	head := itemStartPattern.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if head == nil {
		return catalog.RawProject{}, false, nil
	}
	order, _ := strconv.Atoi(head[1])
	link := strings.TrimSpace(head[2])

	var creator string
	var extraLinks, description []string
	for _, raw := range lines[1:] {
		line := strings.TrimSpace(raw)
		if creator == "" {
			if m := creatorPattern.FindStringSubmatch(line); m != nil {
				creator = strings.TrimSpace(m[1])
				continue
			}
		}
		// Bracket-wrapped bare links belong to the description body, not to
		// the project link.
		if m := bareLinkPattern.FindStringSubmatch(line); m != nil {
			extraLinks = append(extraLinks, m[1])
			continue
		}
		description = append(description, line)
	}

	combined := strings.TrimSpace(strings.Join(append(extraLinks, description...), "\n"))
	rendered, err := e.render(combined)
	if err != nil {
		return catalog.RawProject{}, false, err
	}

	return catalog.RawProject{
		Order:       order,
		Link:        link,
		Creator:     creator,
		Description: rendered,
		Block:       block,
	}, true, nil
}
