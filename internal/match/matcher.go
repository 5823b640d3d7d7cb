package match

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/query"
	"github.com/dlclark/regexp2"
	"github.com/gobwas/glob"
)

// Defaults carries the global search flags a view contributes: whether
// the UI's case-sensitivity toggle is on, and whether "search in path" is
// globally enabled (spec.md §4.9's "(none)" atom row).
type Defaults struct {
	MatchCase    bool
	SearchInPath bool
}

type atomState struct {
	glob         glob.Glob
	globErr      error
	regex        *regexp2.Regexp
	regexErr     error
	resolvedDate *query.DateAtom
	dateErr      error
}

// Matcher is an AST compiled once per search against a fixed "now" (so
// relative date-modified atoms resolve once, not per entry) with any
// regex/glob patterns pre-compiled and cached by atom identity.
type Matcher struct {
	root     *query.Node
	defaults Defaults

	mu     sync.Mutex
	states map[*query.Atom]*atomState
}

// Compile builds a Matcher for root. now resolves relative date-modified
// atoms (today, past 3 years, …) exactly once for the lifetime of this
// Matcher, matching the "one search, one now" semantics a view expects.
func Compile(root *query.Node, defaults Defaults, now time.Time) *Matcher {
	m := &Matcher{root: root, defaults: defaults, states: make(map[*query.Atom]*atomState)}
	m.prepare(root, now)
	return m
}

func (m *Matcher) prepare(n *query.Node, now time.Time) {
	if n == nil {
		return
	}
	if n.Kind != query.NodeAtom {
		for _, c := range n.Children {
			m.prepare(c, now)
		}
		return
	}
	a := n.Atom
	st := &atomState{}
	switch a.Kind {
	case query.AtomText:
		if a.Regex {
			opts := regexp2.None
			if !m.effectiveCase(a) {
				opts = regexp2.IgnoreCase
			}
			st.regex, st.regexErr = regexp2.Compile(a.Text, opts)
		} else if a.Glob {
			pattern := a.Text
			if !m.effectiveCase(a) {
				pattern = strings.ToLower(pattern)
			}
			st.glob, st.globErr = glob.Compile(pattern)
		}
	case query.AtomDateModified:
		d, err := query.ParseDate(a.Text, now)
		if err != nil {
			st.dateErr = err
		} else {
			st.resolvedDate = &d
		}
	}
	m.states[a] = st
}

func (m *Matcher) stateFor(a *query.Atom) *atomState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[a]
}

// Eval evaluates the compiled AST against e, returning whether it matches
// and, when requested, the highlight ranges a successful leaf match
// produced.
func (m *Matcher) Eval(e *entry.Entry, withHighlights bool) (bool, []Range) {
	ctx := NewContext(e)
	ok, ranges := m.eval(m.root, ctx, withHighlights)
	if !withHighlights || len(ranges) < 2 {
		return ok, ranges
	}
	return ok, mergeRanges(ranges)
}

// mergeRanges coalesces overlapping or touching ranges within the same
// field, so an AND of several atoms that each highlight an overlapping
// span of the same name/path renders as one contiguous highlight instead
// of several visually-doubled ones (fsearch_highlight_token.c's token
// span merging, carried into this matcher's Eval).
func mergeRanges(ranges []Range) []Range {
	byField := map[Field][]Range{}
	for _, r := range ranges {
		byField[r.Field] = append(byField[r.Field], r)
	}

	var out []Range
	for _, rs := range byField {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Start < rs[j].Start })
		cur := rs[0]
		for _, r := range rs[1:] {
			if r.Start <= cur.End {
				if r.End > cur.End {
					cur.End = r.End
				}
				continue
			}
			out = append(out, cur)
			cur = r
		}
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (m *Matcher) eval(n *query.Node, ctx *Context, withHighlights bool) (bool, []Range) {
	switch n.Kind {
	case query.NodeAnd:
		ok, ranges := true, []Range(nil)
		for _, c := range n.Children {
			co, cr := m.eval(c, ctx, withHighlights)
			if !co {
				return false, nil
			}
			ranges = append(ranges, cr...)
		}
		return ok, ranges
	case query.NodeOr:
		for _, c := range n.Children {
			if ok, ranges := m.eval(c, ctx, withHighlights); ok {
				return true, ranges
			}
		}
		return false, nil
	case query.NodeNot:
		ok, _ := m.eval(n.Children[0], ctx, false)
		return !ok, nil
	case query.NodeAtom:
		return m.evalAtom(n.Atom, ctx, withHighlights)
	}
	return false, nil
}

func (m *Matcher) evalAtom(a *query.Atom, ctx *Context, withHighlights bool) (bool, []Range) {
	if a.KindFilter == query.FilterFilesOnly && ctx.Entry.Kind != entry.KindFile {
		return false, nil
	}
	if a.KindFilter == query.FilterFoldersOnly && ctx.Entry.Kind != entry.KindFolder {
		return false, nil
	}

	switch a.Kind {
	case query.AtomMatchAll:
		return true, nil
	case query.AtomExt:
		return matchExt(ctx, a), nil
	case query.AtomSize:
		if a.Size == nil {
			return true, nil
		}
		return a.Size.Match(ctx.Entry.Size), nil
	case query.AtomDateModified:
		st := m.stateFor(a)
		if st == nil || st.resolvedDate == nil {
			return true, nil // malformed arg already diagnosed at parse time
		}
		return st.resolvedDate.Match(ctx.Entry.Mtime), nil
	case query.AtomText:
		return m.matchText(a, ctx, withHighlights)
	}
	return false, nil
}

func matchExt(ctx *Context, a *query.Atom) bool {
	if ctx.Entry.Kind != entry.KindFile {
		return false
	}
	ext := entry.Extension(ctx.Entry)
	for _, want := range a.Ext {
		if strings.EqualFold(ext, strings.TrimPrefix(want, ".")) {
			return true
		}
	}
	return false
}

// effectiveCase resolves the auto-match-case rule: an explicit case:/
// nocase: wins; otherwise a needle containing an uppercase code point
// upgrades to case-sensitive.
func (m *Matcher) effectiveCase(a *query.Atom) bool {
	if a.CaseSet {
		return a.MatchCase
	}
	if hasUpper(a.Text) {
		return true
	}
	return m.defaults.MatchCase
}

// effectiveInPath resolves the auto-search-in-path rule: an explicit
// path:/nopath: wins; otherwise a needle containing '/' switches to path
// matching, else the view's global flag applies.
func (m *Matcher) effectiveInPath(a *query.Atom) bool {
	if a.PathSet {
		return a.InPath
	}
	if strings.ContainsRune(a.Text, '/') {
		return true
	}
	return m.defaults.SearchInPath
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchText(a *query.Atom, ctx *Context, withHighlights bool) (bool, []Range) {
	inPath := m.effectiveInPath(a)
	matchCase := m.effectiveCase(a)

	var haystack string
	var field Field
	var ascii bool
	if inPath {
		haystack, field, ascii = ctx.Path(), FieldPath, ctx.PathASCII()
	} else {
		haystack, field, ascii = ctx.Name(), FieldName, ctx.NameASCII()
	}

	st := m.stateFor(a)

	switch {
	case st != nil && a.Regex:
		if st.regexErr != nil || st.regex == nil {
			return true, nil // malformed regex downgrades to match-all (§7)
		}
		m2, err := st.regex.FindStringMatch(haystack)
		if err != nil || m2 == nil {
			return false, nil
		}
		if !withHighlights {
			return true, nil
		}
		r := Range{Start: m2.Index, End: m2.Index + m2.Length, Field: field}
		return true, splitAtBoundary(r, ctx.nameBoundary())

	case st != nil && a.Glob:
		if st.globErr != nil || st.glob == nil {
			return true, nil
		}
		subject := haystack
		if !matchCase {
			subject = strings.ToLower(haystack)
		}
		if !st.glob.Match(subject) {
			return false, nil
		}
		return true, nil

	case a.Exact:
		if needleASCII(a.Text) && ascii {
			if matchCase {
				return haystack == a.Text, nil
			}
			return strings.EqualFold(haystack, a.Text), nil
		}
		return ctx.nfdFor(field) == needleNFD(a.Text), nil

	default:
		return m.matchSubstring(a, ctx, haystack, field, ascii, matchCase, withHighlights)
	}
}

// matchSubstring is the plain substring atom: ASCII strstr/strcasestr
// when both needle and haystack are ASCII, else NFD+casefolded contains.
func (m *Matcher) matchSubstring(a *query.Atom, ctx *Context, haystack string, field Field, ascii, matchCase, withHighlights bool) (bool, []Range) {
	if needleASCII(a.Text) && ascii {
		var idx int
		if matchCase {
			idx = strings.Index(haystack, a.Text)
		} else {
			idx = strings.Index(strings.ToLower(haystack), strings.ToLower(a.Text))
		}
		if idx < 0 {
			return false, nil
		}
		if !withHighlights {
			return true, nil
		}
		r := Range{Start: idx, End: idx + len(a.Text), Field: field}
		return true, splitAtBoundary(r, ctx.nameBoundary())
	}

	folded := ctx.nfdFor(field)
	needle := needleNFD(a.Text)
	if !strings.Contains(folded, needle) {
		return false, nil
	}
	return true, nil // byte offsets into the NFD buffer don't map cleanly back to raw UTF-8; highlight omitted for the non-ASCII path
}

func (c *Context) nfdFor(f Field) string {
	if f == FieldPath {
		return c.PathNFD()
	}
	return c.NameNFD()
}
