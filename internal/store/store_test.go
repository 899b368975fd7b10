package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/catalog"
	"github.com/pzntech/showcase-crawler/internal/limiter"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Unix(1700000000, 0).UTC()
	s := NewWithPool(mock, fakeClock{now: now}, limiter.New(5), zap.NewNop())
	return s, mock, now
}

func sampleProject(now time.Time) catalog.Project {
	return catalog.Project{
		Identifier:   "main_2024_01_05_1",
		Order:        1,
		Branch:       "main",
		Season:       1,
		Date:         time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
		Creator:      "Alice",
		CreatorLower: "alice",
		Link:         "https://a.example",
		LinkLower:    "https://a.example",
		Description:  "<p>Great site.</p>",
		Screenshot:   "screenshots/main_2024_01_05_1.webp",
		CreatedAt:    now,
	}
}

func TestUpsertProjectsCommitsBatch(t *testing.T) {
	t.Parallel()

	s, mock, now := newTestStore(t)
	p := sampleProject(now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projects").
		WithArgs(
			p.Identifier, p.Order, p.Branch, p.Season, p.Date,
			&p.Creator, &p.CreatorLower, p.Link, p.LinkLower, p.Description,
			&p.Screenshot, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.UpsertProjects(context.Background(), []catalog.Project{p}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProjectsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	s, mock, now := newTestStore(t)
	p := sampleProject(now)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO projects").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := s.UpsertProjects(context.Background(), []catalog.Project{p})
	require.Error(t, err)
	require.Contains(t, err.Error(), p.Identifier)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProjectsEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s, mock, _ := newTestStore(t)
	require.NoError(t, s.UpsertProjects(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertCacheEntry(t *testing.T) {
	t.Parallel()

	s, mock, now := newTestStore(t)

	mock.ExpectExec("INSERT INTO cache").
		WithArgs("branch", "main", "abc123", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := catalog.CacheEntry{Type: catalog.CacheTypeBranch, Name: "main", Hash: "abc123"}
	require.NoError(t, s.UpsertCacheEntry(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCacheEntries(t *testing.T) {
	t.Parallel()

	s, mock, now := newTestStore(t)

	rows := pgxmock.NewRows([]string{"type", "name", "hash", "updated_at"}).
		AddRow("branch", "main", "h1", nil).
		AddRow("project", "main_2024_01_05_1", "h2", &now)
	mock.ExpectQuery("SELECT type, name, hash, updated_at FROM cache").
		WillReturnRows(rows)

	entries, err := s.LoadCacheEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, catalog.CacheTypeBranch, entries[0].Type)
	require.Nil(t, entries[0].UpdatedAt)
	require.Equal(t, "main_2024_01_05_1", entries[1].Name)
	require.Equal(t, now, *entries[1].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectsFiltersBySearchAndSeason(t *testing.T) {
	t.Parallel()

	s, mock, now := newTestStore(t)
	date := time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
	creator := "Alice"
	creatorLower := "alice"

	rows := pgxmock.NewRows([]string{
		"identifier", "order", "branch", "season", "date",
		"creator", "creator_lower", "link", "link_lower", "description",
		"screenshot", "created_at", "updated_at",
	}).AddRow(
		"main_2024_01_05_1", 1, "main", 5, date,
		&creator, &creatorLower, "https://a.example", "https://a.example", "<p>hi</p>",
		nil, now, nil,
	)
	mock.ExpectQuery("SELECT identifier").
		WithArgs("ali", 5).
		WillReturnRows(rows)

	projects, err := s.ListProjects(context.Background(), "ali", 5)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, "Alice", projects[0].Creator)
	require.Empty(t, projects[0].Screenshot)
	require.Nil(t, projects[0].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	s, mock, _ := newTestStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS projects").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
