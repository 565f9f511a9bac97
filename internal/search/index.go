// Package search provides the live substring search over the active
// timeline. The match set is derived state: it is recomputed from
// scratch whenever the query or the timeline changes, never maintained
// incrementally.
package search

import (
	"strings"

	"github.com/parleychat/parley/internal/chat"
)

// Index holds the current query's matches in timeline order and a
// circular navigation cursor over them.
type Index struct {
	query   string
	matches []string // message identities, timeline order
	cursor  int      // -1 = no selection yet
}

// New creates an empty index.
func New() *Index {
	return &Index{cursor: -1}
}

// Query returns the active query string.
func (x *Index) Query() string { return x.query }

// Matches returns a copy of the matching message identities.
func (x *Index) Matches() []string {
	out := make([]string, len(x.matches))
	copy(out, x.matches)
	return out
}

// Recompute scans the ordered messages for case-insensitive substring
// matches of query. An empty query clears the match set. The cursor
// resets; a subsequent Next or Previous starts from the first match.
func (x *Index) Recompute(query string, msgs []chat.Message) {
	x.query = query
	x.matches = x.matches[:0]
	x.cursor = -1

	if query == "" {
		return
	}
	needle := strings.ToLower(query)
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Body), needle) {
			x.matches = append(x.matches, m.Identity())
		}
	}
}

// Next advances the cursor circularly and returns the selected message
// identity as a scroll target. ok is false when there are no matches.
func (x *Index) Next() (identity string, ok bool) {
	if len(x.matches) == 0 {
		return "", false
	}
	if x.cursor < 0 {
		x.cursor = 0
	} else {
		x.cursor = (x.cursor + 1) % len(x.matches)
	}
	return x.matches[x.cursor], true
}

// Previous moves the cursor backwards circularly.
func (x *Index) Previous() (identity string, ok bool) {
	if len(x.matches) == 0 {
		return "", false
	}
	if x.cursor < 0 {
		x.cursor = 0
	} else {
		x.cursor = (x.cursor - 1 + len(x.matches)) % len(x.matches)
	}
	return x.matches[x.cursor], true
}
