// Package override holds canned titles for sites whose pages do not yield a
// useful <title> when fetched directly.
package override

import (
	"fmt"
	"regexp"
)

// Entry maps a URL pattern to a title. Title may reference named groups of
// Pattern using regexp.Expand syntax, e.g. "${image} - Docker Hub".
type Entry struct {
	Pattern *regexp.Regexp
	Title   string
}

// Spec is the uncompiled form of an Entry, as read from configuration.
type Spec struct {
	Pattern string `mapstructure:"pattern"`
	Title   string `mapstructure:"title"`
}

// Table is an ordered, immutable list of entries. The first match wins.
type Table struct {
	entries []Entry
}

// builtin entries; matching is case-insensitive on the whole URL.
var builtin = []Spec{
	{Pattern: `^https?://hub\.docker\.com/_/(?P<image>[\w\d]+)/?$`, Title: "library/${image} - Docker Hub"},
	{Pattern: `^https?://hub\.docker\.com/r/(?P<author>[\w\d]+)/(?P<image>[\w\d]+)/?$`, Title: "${author}/${image} - Docker Hub"},
	{Pattern: `^https?://osquery\.io/?$`, Title: "osquery | Easily ask questions about your Linux, Windows, and macOS infrastructure"},
	{Pattern: `^https?://osquery\.io/schema/?$`, Title: "osquery | Schema"},
	{Pattern: `^https?://osquery\.io/blog/official-news/?$`, Title: "osquery | Official News"},
	{Pattern: `^https?://osquery\.io/blog/?`, Title: "osquery | Blog"},
}

// New compiles the built-in entries followed by extra.
func New(extra ...Spec) (*Table, error) {
	specs := make([]Spec, 0, len(builtin)+len(extra))
	specs = append(specs, builtin...)
	specs = append(specs, extra...)

	entries := make([]Entry, 0, len(specs))
	for i, s := range specs {
		if s.Pattern == "" || s.Title == "" {
			return nil, fmt.Errorf("override %d: pattern and title are required", i)
		}
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("override %d: compile %q: %w", i, s.Pattern, err)
		}
		entries = append(entries, Entry{Pattern: re, Title: s.Title})
	}
	return &Table{entries: entries}, nil
}

// Lookup returns the canned title for rawURL, if any entry matches.
func (t *Table) Lookup(rawURL string) (string, bool) {
	if t == nil {
		return "", false
	}
	for _, e := range t.entries {
		m := e.Pattern.FindStringSubmatchIndex(rawURL)
		if m == nil {
			continue
		}
		title := e.Pattern.ExpandString(nil, e.Title, rawURL, m)
		return string(title), true
	}
	return "", false
}

// Len reports the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
