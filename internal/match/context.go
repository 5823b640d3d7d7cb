// Package match implements the query matcher of spec.md §4.10: per-entry
// lazily computed match buffers (ASCII-folded and NFD-casefolded), an
// atom dispatch table that picks the fastest function preserving
// semantics, and the auto-match-case / auto-search-in-path heuristics.
package match

import (
	"strings"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// Context is the lazily-computed per-entry match buffer set: name/path in
// their raw, ASCII-casefolded, and NFD-normalized-casefolded forms. Only
// the buffers an atom actually consults are computed.
type Context struct {
	Entry *entry.Entry

	name, path string
	haveName   bool
	havePath   bool

	nameFolded, pathFolded   string
	haveNameFolded           bool
	havePathFolded           bool
	nameNFD, pathNFD         string
	haveNameNFD, havePathNFD bool

	asciiName, asciiPath bool
}

// NewContext creates a match context for e. Buffers are computed on
// first access, not eagerly.
func NewContext(e *entry.Entry) *Context {
	return &Context{Entry: e}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// Name returns the entry's bare name.
func (c *Context) Name() string {
	if !c.haveName {
		c.name = c.Entry.Name
		c.asciiName = isASCII(c.name)
		c.haveName = true
	}
	return c.name
}

// Path returns the entry's full path, built from its ancestor chain.
func (c *Context) Path() string {
	if !c.havePath {
		c.path = entry.Path(c.Entry)
		c.asciiPath = isASCII(c.path)
		c.havePath = true
	}
	return c.path
}

// NameASCII reports whether the entry's name is pure ASCII (decides the
// fast-path strings.Contains/EqualFold branch vs. the NFD+folded one).
func (c *Context) NameASCII() bool {
	c.Name()
	return c.asciiName
}

// PathASCII is the path analogue of NameASCII.
func (c *Context) PathASCII() bool {
	c.Path()
	return c.asciiPath
}

// NameFolded returns the entry's name lowercased with strings.ToLower.
func (c *Context) NameFolded() string {
	if !c.haveNameFolded {
		c.nameFolded = strings.ToLower(c.Name())
		c.haveNameFolded = true
	}
	return c.nameFolded
}

// PathFolded is the path analogue of NameFolded.
func (c *Context) PathFolded() string {
	if !c.havePathFolded {
		c.pathFolded = strings.ToLower(c.Path())
		c.havePathFolded = true
	}
	return c.pathFolded
}

// NameNFD returns the entry's name, Unicode NFD-normalized and
// casefolded — used whenever the name contains non-ASCII runes, the
// closest idiomatic analogue to the original's ICU UTF-16 NFD buffers.
func (c *Context) NameNFD() string {
	if !c.haveNameNFD {
		c.nameNFD = norm.NFD.String(foldCaser.String(c.Name()))
		c.haveNameNFD = true
	}
	return c.nameNFD
}

// PathNFD is the path analogue of NameNFD.
func (c *Context) PathNFD() string {
	if !c.havePathNFD {
		c.pathNFD = norm.NFD.String(foldCaser.String(c.Path()))
		c.havePathNFD = true
	}
	return c.pathNFD
}

// nameBoundary returns the byte offset within Path() where the entry's
// own name begins, used to split a path highlight range that would
// otherwise straddle the parent/name boundary.
func (c *Context) nameBoundary() int {
	p, n := c.Path(), c.Name()
	if len(p) >= len(n) {
		return len(p) - len(n)
	}
	return 0
}

// needleASCII reports whether s is pure ASCII, used to decide whether a
// query needle forces the NFD path even when the haystack is ASCII.
func needleASCII(s string) bool { return isASCII(s) }

// needleNFD folds and NFD-normalizes a query needle for comparison
// against NameNFD/PathNFD.
func needleNFD(s string) string {
	return norm.NFD.String(foldCaser.String(s))
}
