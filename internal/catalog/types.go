// Package catalog defines the domain model shared across the scrape pipeline.
package catalog

import (
	"context"
	"time"
)

// CacheType distinguishes the two kinds of change-detection entries.
type CacheType string

const (
	// CacheTypeBranch tracks the content hash of a whole branch README.
	CacheTypeBranch CacheType = "branch"
	// CacheTypeProject tracks the content hash of a single project block.
	CacheTypeProject CacheType = "project"
)

// Project is one showcased submission for a given week and branch.
type Project struct {
	Identifier   string     `json:"identifier"`
	Order        int        `json:"order"`
	Branch       string     `json:"branch"`
	Season       int        `json:"season"`
	Date         time.Time  `json:"date"`
	Creator      string     `json:"creator,omitempty"`
	CreatorLower string     `json:"-"`
	Link         string     `json:"link"`
	LinkLower    string     `json:"-"`
	Description  string     `json:"description"`
	Screenshot   string     `json:"screenshot,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// CacheEntry is one persisted change-detection record, unique on (Type, Name).
type CacheEntry struct {
	Type      CacheType
	Name      string
	Hash      string
	UpdatedAt *time.Time
}

// RawProject is an ephemeral parse result for one numbered list item.
// Block holds the exact source text the item was matched from; it is the
// hashing input and must be byte-stable across runs when content is unchanged.
type RawProject struct {
	Order       int
	Link        string
	Creator     string
	Description string
	Block       string
}

// RawWeek groups the RawProjects parsed under one dated heading.
type RawWeek struct {
	Date     time.Time
	Projects []RawProject
}

// ContentSource lists branches and fetches per-branch README content.
type ContentSource interface {
	Branches(ctx context.Context) ([]string, error)
	Readme(ctx context.Context, branch string) (string, error)
}

// Capturer renders a URL to an image file at dest and returns the written
// path. Implementations own their concurrency budget and timeouts.
type Capturer interface {
	Capture(ctx context.Context, url, dest string) (string, error)
}

// CacheStore persists change-detection entries.
type CacheStore interface {
	LoadCacheEntries(ctx context.Context) ([]CacheEntry, error)
	UpsertCacheEntry(ctx context.Context, entry CacheEntry) error
}

// ProjectStore persists project rows.
type ProjectStore interface {
	UpsertProjects(ctx context.Context, projects []Project) error
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Key builds the in-memory cache map key for a (type, name) pair.
func Key(t CacheType, name string) string {
	return string(t) + ":" + name
}
