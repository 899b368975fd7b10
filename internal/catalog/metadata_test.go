package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestGroupByWeekSortsWeeksAscending(t *testing.T) {
	t.Parallel()

	projects := []Project{
		{Identifier: "a", Season: 5, Date: day(12), Order: 1},
		{Identifier: "b", Season: 5, Date: day(5), Order: 1},
		{Identifier: "c", Season: 5, Date: day(5), Order: 2},
	}

	view := GroupByWeek(projects)

	require.Equal(t, 5, view.Season)
	require.Equal(t, 3, view.Count)
	require.Len(t, view.Weeks, 2)
	require.Equal(t, day(5), view.Weeks[0].Date)
	require.Len(t, view.Weeks[0].Projects, 2)
	require.Equal(t, day(12), view.Weeks[1].Date)
}

func TestGroupByWeekEmptyInput(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeasonView{}, GroupByWeek(nil))
}

func TestBuildMetadataAggregates(t *testing.T) {
	t.Parallel()

	projects := []Project{
		{Season: 1, Date: day(5), Creator: "Alice", Link: "https://a.example"},
		{Season: 1, Date: day(12), Creator: "alice ", Link: "https://b.example"},
		{Season: 2, Date: day(19), Creator: "", Link: "https://c.example"},
	}

	meta := BuildMetadata(projects)

	require.Equal(t, 3, meta.TotalProjects)
	require.Equal(t, 2, meta.TotalSeasons)
	require.Equal(t, []string{"alice"}, meta.Creators)
	require.Len(t, meta.Links, 3)
	require.Equal(t, []SeasonCount{{Season: 1, Count: 2}, {Season: 2, Count: 1}}, meta.SeasonStats)
	require.Equal(t, day(5), *meta.EarliestDate)
	require.Equal(t, day(19), *meta.LatestDate)
}
