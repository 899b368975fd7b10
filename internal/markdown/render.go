package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var brTag = regexp.MustCompile(`(?i)<br\s*/?>`)

// RenderFunc converts raw markdown into sanitized HTML.
type RenderFunc func(raw string) (string, error)

// Renderer converts project descriptions from markdown into sanitized HTML.
// Hashing always happens over the raw block, never over this output, so the
// renderer can evolve without invalidating the change-detection cache.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer with goldmark defaults and the bluemonday
// UGC policy.
func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render converts raw markdown to sanitized HTML, stripping <br> artifacts
// the way the upstream formatter does.
func (r *Renderer) Render(raw string) (string, error) {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(strings.Join(lines, "\n")), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	html := brTag.ReplaceAllString(buf.String(), "")
	return strings.TrimSpace(r.policy.Sanitize(html)), nil
}
