package catalog

import (
	"sort"
	"strings"
	"time"
)

// Week is the query-facing grouping of projects under one week date.
type Week struct {
	Date     time.Time `json:"date"`
	Projects []Project `json:"projects"`
}

// SeasonView is the grouped response shape for the projects endpoint.
type SeasonView struct {
	Season int    `json:"season"`
	Weeks  []Week `json:"weeks"`
	Count  int    `json:"count"`
}

// SeasonCount pairs a season with its project count.
type SeasonCount struct {
	Season int `json:"season"`
	Count  int `json:"count"`
}

// Metadata aggregates catalog-wide statistics.
type Metadata struct {
	TotalProjects int           `json:"totalProjects"`
	TotalSeasons  int           `json:"totalSeasons"`
	Creators      []string      `json:"creators"`
	Links         []string      `json:"links"`
	SeasonStats   []SeasonCount `json:"seasonStats"`
	EarliestDate  *time.Time    `json:"earliestDate"`
	LatestDate    *time.Time    `json:"latestDate"`
}

// GroupByWeek folds an ordered project list into the season view, grouping
// rows by week date and preserving the incoming ordering within each week.
func GroupByWeek(projects []Project) SeasonView {
	if len(projects) == 0 {
		return SeasonView{}
	}
	byDate := make(map[time.Time][]Project)
	for _, p := range projects {
		byDate[p.Date] = append(byDate[p.Date], p)
	}
	weeks := make([]Week, 0, len(byDate))
	for date, group := range byDate {
		weeks = append(weeks, Week{Date: date, Projects: group})
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Date.Before(weeks[j].Date) })
	return SeasonView{
		Season: projects[0].Season,
		Weeks:  weeks,
		Count:  len(projects),
	}
}

// BuildMetadata computes catalog-wide aggregates over all persisted projects.
func BuildMetadata(projects []Project) Metadata {
	creators := make(map[string]struct{})
	links := make(map[string]struct{})
	seasons := make(map[int]int)
	var earliest, latest *time.Time

	for i := range projects {
		p := projects[i]
		if c := strings.ToLower(strings.TrimSpace(p.Creator)); c != "" {
			creators[c] = struct{}{}
		}
		if l := strings.ToLower(strings.TrimSpace(p.Link)); l != "" {
			links[l] = struct{}{}
		}
		seasons[p.Season]++
		if earliest == nil || p.Date.Before(*earliest) {
			d := p.Date
			earliest = &d
		}
		if latest == nil || p.Date.After(*latest) {
			d := p.Date
			latest = &d
		}
	}

	meta := Metadata{
		TotalProjects: len(projects),
		TotalSeasons:  len(seasons),
		Creators:      sortedKeys(creators),
		Links:         sortedKeys(links),
		EarliestDate:  earliest,
		LatestDate:    latest,
	}
	for season, count := range seasons {
		meta.SeasonStats = append(meta.SeasonStats, SeasonCount{Season: season, Count: count})
	}
	sort.Slice(meta.SeasonStats, func(i, j int) bool {
		return meta.SeasonStats[i].Season < meta.SeasonStats[j].Season
	})
	return meta
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
