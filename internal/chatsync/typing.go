package chatsync

// TypingTracker holds the authors currently typing in the active room, in
// the order they started. The local identity is never recorded.
type TypingTracker struct {
	self    string
	authors []string
}

func NewTypingTracker(self string) *TypingTracker {
	return &TypingTracker{self: self}
}

// Apply records a start or stop for author and reports whether the set
// changed.
func (t *TypingTracker) Apply(author string, typing bool) bool {
	if author == "" || author == t.self {
		return false
	}
	idx := t.indexOf(author)
	switch {
	case typing && idx < 0:
		t.authors = append(t.authors, author)
		return true
	case !typing && idx >= 0:
		t.authors = append(t.authors[:idx], t.authors[idx+1:]...)
		return true
	}
	return false
}

// Authors returns every typing author in insertion order.
func (t *TypingTracker) Authors() []string {
	out := make([]string, len(t.authors))
	copy(out, t.authors)
	return out
}

// Visible returns at most n authors in insertion order.
func (t *TypingTracker) Visible(n int) []string {
	return firstN(t.authors, n)
}

// Retain drops every author not in present and returns the dropped ones.
func (t *TypingTracker) Retain(present []string) []string {
	keep := make(map[string]struct{}, len(present))
	for _, p := range present {
		keep[p] = struct{}{}
	}
	var dropped []string
	kept := t.authors[:0]
	for _, a := range t.authors {
		if _, ok := keep[a]; ok {
			kept = append(kept, a)
		} else {
			dropped = append(dropped, a)
		}
	}
	t.authors = kept
	return dropped
}

func (t *TypingTracker) Reset() { t.authors = nil }

func (t *TypingTracker) indexOf(author string) int {
	for i, a := range t.authors {
		if a == author {
			return i
		}
	}
	return -1
}

func firstN(s []string, n int) []string {
	if n < 0 || n > len(s) {
		n = len(s)
	}
	out := make([]string, n)
	copy(out, s[:n])
	return out
}
