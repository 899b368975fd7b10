package scraper

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pzntech/showcase-crawler/internal/cache"
	"github.com/pzntech/showcase-crawler/internal/catalog"
	"github.com/pzntech/showcase-crawler/internal/markdown"
	"github.com/pzntech/showcase-crawler/internal/screenshot"
)

type fakeSource struct {
	mu          sync.Mutex
	branches    []string
	readmes     map[string]string
	readmeErrs  map[string]error
	branchCalls int
	readmeCalls int
	block       chan struct{}
	entered     chan struct{}
}

func (f *fakeSource) Branches(_ context.Context) ([]string, error) {
	f.mu.Lock()
	f.branchCalls++
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.branches, nil
}

func (f *fakeSource) Readme(_ context.Context, branch string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readmeCalls++
	if err, ok := f.readmeErrs[branch]; ok {
		return "", err
	}
	return f.readmes[branch], nil
}

type fakeCapturer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeCapturer) Capture(_ context.Context, url, dest string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return "", f.err
	}
	return dest, nil
}

func (f *fakeCapturer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeStore implements both catalog.ProjectStore and catalog.CacheStore.
type fakeStore struct {
	mu          sync.Mutex
	projects    map[string]catalog.Project
	cacheRows   map[string]catalog.CacheEntry
	batches     int
	upsertErr   error
	cacheUpsert int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects:  make(map[string]catalog.Project),
		cacheRows: make(map[string]catalog.CacheEntry),
	}
}

func (f *fakeStore) UpsertProjects(_ context.Context, projects []catalog.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if len(projects) == 0 {
		return nil
	}
	f.batches++
	for _, p := range projects {
		f.projects[p.Identifier] = p
	}
	return nil
}

func (f *fakeStore) LoadCacheEntries(_ context.Context) ([]catalog.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]catalog.CacheEntry, 0, len(f.cacheRows))
	for _, e := range f.cacheRows {
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *fakeStore) UpsertCacheEntry(_ context.Context, entry catalog.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cacheUpsert++
	f.cacheRows[catalog.Key(entry.Type, entry.Name)] = entry
	return nil
}

func (f *fakeStore) projectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

func (f *fakeStore) cacheHash(t catalog.CacheType, name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.cacheRows[catalog.Key(t, name)]
	return e.Hash, ok
}

type testClock struct{}

func (testClock) Now() time.Time { return time.Unix(1700000000, 0).UTC() }

func newTestReconciler(
	t *testing.T,
	source *fakeSource,
	store *fakeStore,
	capturer *fakeCapturer,
) *Reconciler {
	t.Helper()
	extractor := markdown.NewExtractor(nil, markdown.NewRenderer().Render)
	return New(
		source,
		extractor,
		cache.New(store, zap.NewNop()),
		store,
		capturer,
		screenshot.NewGate(time.Hour),
		testClock{},
		Config{PrimaryBranch: "main", ScreenshotDir: t.TempDir(), PublicPrefix: "screenshots"},
		zap.NewNop(),
	)
}

const mainReadme = "### 5 Januari 2024\n" +
	"1. [https://a.example]\n**Alice**\nGreat site.\n" +
	"2. [https://b.example]\n**Budi**\nAnother one.\n"

func TestRunPersistsProjects(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": mainReadme}}
	store := newFakeStore()
	capturer := &fakeCapturer{}
	rec := newTestReconciler(t, source, store, capturer)

	require.NoError(t, rec.Run(context.Background()))

	require.Equal(t, 2, store.projectCount())
	require.Equal(t, 2, capturer.callCount())

	p, ok := store.projects["main_2024_01_05_1"]
	require.True(t, ok)
	require.Equal(t, "main", p.Branch)
	require.Equal(t, 1, p.Season)
	require.Equal(t, "Alice", p.Creator)
	require.Equal(t, "alice", p.CreatorLower)
	require.Equal(t, "https://a.example", p.Link)
	require.Equal(t, "screenshots/main_2024_01_05_1.webp", p.Screenshot)

	_, ok = store.cacheHash(catalog.CacheTypeBranch, "main")
	require.True(t, ok)
	_, ok = store.cacheHash(catalog.CacheTypeProject, "main_2024_01_05_1")
	require.True(t, ok)
}

func TestRunIsIdempotentOnUnchangedContent(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": mainReadme}}
	store := newFakeStore()
	capturer := &fakeCapturer{}
	rec := newTestReconciler(t, source, store, capturer)

	require.NoError(t, rec.Run(context.Background()))
	captures := capturer.callCount()
	batches := store.batches

	require.NoError(t, rec.Run(context.Background()))

	require.Equal(t, captures, capturer.callCount(), "second run must capture nothing")
	require.Equal(t, batches, store.batches, "second run must write nothing")
}

func TestRunReprocessesOnlyChangedProject(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": mainReadme}}
	store := newFakeStore()
	capturer := &fakeCapturer{}
	rec := newTestReconciler(t, source, store, capturer)

	require.NoError(t, rec.Run(context.Background()))
	siblingHash, ok := store.cacheHash(catalog.CacheTypeProject, "main_2024_01_05_2")
	require.True(t, ok)

	source.readmes["main"] = strings.Replace(mainReadme, "Great site.", "Even greater site.", 1)
	require.NoError(t, rec.Run(context.Background()))

	// Only the mutated project was re-captured.
	require.Equal(t, 3, capturer.callCount())
	require.Equal(t, "https://a.example", capturer.calls[2])

	// The sibling's cache hash is untouched.
	afterHash, ok := store.cacheHash(catalog.CacheTypeProject, "main_2024_01_05_2")
	require.True(t, ok)
	require.Equal(t, siblingHash, afterHash)

	p := store.projects["main_2024_01_05_1"]
	require.Contains(t, p.Description, "Even greater site.")
}

func TestSingleFlightRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		branches: []string{"main"},
		readmes:  map[string]string{"main": mainReadme},
		block:    make(chan struct{}),
		entered:  make(chan struct{}, 1),
	}
	store := newFakeStore()
	rec := newTestReconciler(t, source, store, &fakeCapturer{})

	done := make(chan error, 1)
	go func() { done <- rec.Run(context.Background()) }()
	<-source.entered

	require.ErrorIs(t, rec.Run(context.Background()), ErrAlreadyRunning)
	require.False(t, rec.Trigger())

	close(source.block)
	require.NoError(t, <-done)
	require.Equal(t, 1, source.branchCalls, "second invocation must perform no fetches")
}

func TestFetchErrorDoesNotAbortSiblingBranches(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		branches:   []string{"main", "season-2"},
		readmes:    map[string]string{"season-2": mainReadme},
		readmeErrs: map[string]error{"main": errors.New("network down")},
	}
	store := newFakeStore()
	rec := newTestReconciler(t, source, store, &fakeCapturer{})

	require.NoError(t, rec.Run(context.Background()))

	require.Equal(t, 2, store.projectCount())
	_, ok := store.cacheHash(catalog.CacheTypeBranch, "season-2")
	require.True(t, ok)
	_, ok = store.cacheHash(catalog.CacheTypeBranch, "main")
	require.False(t, ok, "failed branch must not be marked seen")
}

func TestParseErrorSkipsBranchAndLeavesCacheStale(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		branches: []string{"main", "season-2"},
		readmes: map[string]string{
			"main":     "### 5 Nonmonth 2024\n1. [https://a.example]\nx\n",
			"season-2": mainReadme,
		},
	}
	store := newFakeStore()
	rec := newTestReconciler(t, source, store, &fakeCapturer{})

	require.NoError(t, rec.Run(context.Background()))

	require.Equal(t, 2, store.projectCount())
	_, ok := store.cacheHash(catalog.CacheTypeBranch, "main")
	require.False(t, ok)
}

func TestPersistenceErrorSkipsCacheUpdateSoNextRunRetries(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": mainReadme}}
	store := newFakeStore()
	store.upsertErr = errors.New("constraint violation")
	capturer := &fakeCapturer{}
	rec := newTestReconciler(t, source, store, capturer)

	require.NoError(t, rec.Run(context.Background()))
	require.Equal(t, 0, store.projectCount())
	_, ok := store.cacheHash(catalog.CacheTypeBranch, "main")
	require.False(t, ok)

	// Clearing the failure lets the next run redo the same work.
	store.mu.Lock()
	store.upsertErr = nil
	store.mu.Unlock()
	require.NoError(t, rec.Run(context.Background()))
	require.Equal(t, 2, store.projectCount())
}

func TestCaptureFailurePersistsProjectWithoutScreenshot(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": mainReadme}}
	store := newFakeStore()
	capturer := &fakeCapturer{err: errors.New("navigation timeout")}
	rec := newTestReconciler(t, source, store, capturer)

	require.NoError(t, rec.Run(context.Background()))

	require.Equal(t, 2, store.projectCount())
	for _, p := range store.projects {
		require.Empty(t, p.Screenshot)
	}
}

func TestEmptyReadmeIsSkippedWithoutWrites(t *testing.T) {
	t.Parallel()

	source := &fakeSource{branches: []string{"main"}, readmes: map[string]string{"main": ""}}
	store := newFakeStore()
	rec := newTestReconciler(t, source, store, &fakeCapturer{})

	require.NoError(t, rec.Run(context.Background()))
	require.Equal(t, 0, store.projectCount())
	require.Equal(t, 0, store.cacheUpsert)
}
