// Package knowledge resolves what is already known about an app or window.
//
// Knowledge lives in tiers consulted in a fixed order: what was learned
// about this user, what was learned across users, and a static baseline
// shipped with the binary. The first tier with a match wins.
package knowledge

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Source names the tier a match came from.
type Source string

const (
	SourceUser     Source = "user"
	SourceShared   Source = "shared"
	SourceBaseline Source = "baseline"
)

// ErrUnknownTier is returned when a tier name cannot be parsed.
var ErrUnknownTier = errors.New("knowledge: unknown tier")

// ParseSource parses a tier name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceUser:
		return SourceUser, nil
	case SourceShared:
		return SourceShared, nil
	case SourceBaseline:
		return SourceBaseline, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTier, s)
}

// Entry is one piece of knowledge. It matches by app name, by a title
// fragment, or both.
type Entry struct {
	ID            string    `yaml:"id" json:"id"`
	Source        Source    `yaml:"-" json:"source"`
	Apps          []string  `yaml:"apps,omitempty" json:"apps,omitempty"`
	TitleContains string    `yaml:"title_contains,omitempty" json:"title_contains,omitempty"`
	Category      string    `yaml:"category,omitempty" json:"category,omitempty"`
	Behavior      string    `yaml:"behavior,omitempty" json:"behavior,omitempty"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Reaction      string    `yaml:"reaction,omitempty" json:"reaction,omitempty"`
	Confidence    float64   `yaml:"confidence,omitempty" json:"confidence"`
	EvidenceCount int       `yaml:"-" json:"evidence_count"`
	UpdatedAt     time.Time `yaml:"-" json:"updated_at"`
}

// matchKind ranks how an entry matched; higher is more specific.
type matchKind int

const (
	noMatch matchKind = iota
	appMatch
	titleMatch
)

// NormalizeApp lower-cases an app or process name and strips ".exe".
func NormalizeApp(app string) string {
	a := strings.ToLower(strings.TrimSpace(app))
	return strings.TrimSuffix(a, ".exe")
}

func (e Entry) match(app, title string) matchKind {
	if e.TitleContains != "" && title != "" &&
		strings.Contains(strings.ToLower(title), strings.ToLower(e.TitleContains)) {
		return titleMatch
	}
	if app == "" {
		return noMatch
	}
	na := NormalizeApp(app)
	for _, a := range e.Apps {
		if NormalizeApp(a) == na {
			return appMatch
		}
	}
	return noMatch
}

// Best picks the most specific entry matching app and title: title
// matches beat app matches, then higher confidence, then lower id.
func Best(entries []Entry, app, title string) (Entry, bool) {
	type cand struct {
		e Entry
		k matchKind
	}
	var cs []cand
	for _, e := range entries {
		if k := e.match(app, title); k != noMatch {
			cs = append(cs, cand{e, k})
		}
	}
	if len(cs) == 0 {
		return Entry{}, false
	}
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].k != cs[j].k {
			return cs[i].k > cs[j].k
		}
		if cs[i].e.Confidence != cs[j].e.Confidence {
			return cs[i].e.Confidence > cs[j].e.Confidence
		}
		return cs[i].e.ID < cs[j].e.ID
	})
	return cs[0].e, true
}

// AppInfo describes a known application.
type AppInfo struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Behavior string `json:"behavior,omitempty"`
}

// ContextInfo describes a known context inside an app, such as a site.
type ContextInfo struct {
	Pattern     string `json:"pattern"`
	Category    string `json:"category,omitempty"`
	Behavior    string `json:"behavior,omitempty"`
	Description string `json:"description,omitempty"`
}

// Match is the result of a resolver lookup.
type Match struct {
	Found    bool         `json:"found"`
	Source   Source       `json:"source,omitempty"`
	Entry    Entry        `json:"entry"`
	Reaction string       `json:"reaction,omitempty"`
	App      *AppInfo     `json:"app_info,omitempty"`
	Context  *ContextInfo `json:"context_info,omitempty"`
}

// Behavior returns the behavior policy name for the match, preferring the
// app-level one.
func (m Match) Behavior() string {
	if m.App != nil && m.App.Behavior != "" {
		return m.App.Behavior
	}
	if m.Context != nil {
		return m.Context.Behavior
	}
	return ""
}

// newMatch builds a Match for entry e found under app.
func newMatch(src Source, e Entry, app string) Match {
	e.Source = src
	m := Match{Found: true, Source: src, Entry: e, Reaction: e.Reaction}
	if e.TitleContains != "" {
		m.Context = &ContextInfo{
			Pattern:     e.TitleContains,
			Category:    e.Category,
			Behavior:    e.Behavior,
			Description: e.Description,
		}
	} else {
		m.App = &AppInfo{Name: app, Category: e.Category, Behavior: e.Behavior}
	}
	return m
}
