package query

import (
	"fmt"
	"strings"
	"time"
)

// parser is a recursive-descent implementation of the precedence grammar
// spec.md §6.2 describes as "tokens -> shunting-yard postfix -> AST": the
// EBNF's or/and/unary/atom productions already encode NOT > AND > OR
// precedence, so a precedence-climbing descent yields the identical tree
// a postfix-then-build pass would, without materializing the
// intermediate RPN array.
type parser struct {
	toks  []Token
	pos   int
	diags []Diagnostic
}

// Parse lexes and parses text into a ParseResult. Parse never fails:
// malformed field arguments downgrade to a match-everything placeholder
// atom and are reported via ParseResult.Diagnostics (spec.md §7
// QueryParse) so the overall query still runs.
func Parse(text string) ParseResult {
	p := &parser{toks: Tokenize(text)}
	root := p.parseOr()
	// A close paren that matches no open paren ends parseOr early; discard
	// it and join whatever follows with an implicit AND.
	for p.cur().Kind == TokRParen {
		p.advance()
		rest := p.parseOr()
		switch {
		case root == nil:
			root = rest
		case rest != nil:
			root = newConnector(NodeAnd, root, rest)
		}
	}
	if root == nil {
		root = newAtom(AtomMatchAll, "")
	}
	return ParseResult{Root: root, Diagnostics: p.diags}
}

func (p *parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) at(off int) Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[i]
}

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

// parseOr := and {("OR"|"||") and}
func (p *parser) parseOr() *Node {
	left := p.parseAnd()
	for p.cur().Kind == TokOr {
		p.advance()
		right := p.parseAnd()
		if right == nil {
			continue
		}
		left = newConnector(NodeOr, left, right)
	}
	return left
}

// parseAnd := unary {("AND"|"&&")? unary} — an implicit AND connects
// adjacent operands with no explicit connector between them.
func (p *parser) parseAnd() *Node {
	left := p.parseUnary()
	for {
		if p.cur().Kind == TokAnd {
			p.advance()
			right := p.parseUnary()
			if right == nil {
				continue
			}
			left = newConnector(NodeAnd, left, right)
			continue
		}
		if p.startsUnary() {
			right := p.parseUnary()
			if right == nil {
				continue
			}
			left = newConnector(NodeAnd, left, right)
			continue
		}
		break
	}
	return left
}

// startsUnary reports whether the current token can begin a unary
// expression (used to detect the implicit-AND join point, and to stop
// before tokens that close the current expression).
func (p *parser) startsUnary() bool {
	switch p.cur().Kind {
	case TokWord, TokField, TokNot, TokLParen:
		return true
	default:
		return false
	}
}

// parseUnary := ("NOT"|"!") unary | atom
func (p *parser) parseUnary() *Node {
	if p.cur().Kind == TokNot {
		p.advance()
		sub := p.parseUnary()
		if sub == nil {
			return nil
		}
		return newConnector(NodeNot, sub)
	}
	return p.parseAtom()
}

// parseAtom := "(" expr ")" | field ":" atom | quoted | word
func (p *parser) parseAtom() *Node {
	switch p.cur().Kind {
	case TokLParen:
		p.advance()
		inner := p.parseOr()
		if p.cur().Kind == TokRParen {
			p.advance()
		}
		// Unmatched close parens are discarded (by Parse at top level, and
		// by the TokRParen case below where an operand is expected);
		// unmatched opens are implicitly closed at EOF since we never
		// error here.
		return inner
	case TokRParen:
		// Stray close paren where an operand is expected: discard it and
		// parse the operand that follows instead.
		p.advance()
		return p.parseUnary()
	case TokField:
		return p.parseField()
	case TokWord:
		return p.parseWordAtom(p.advance())
	default:
		return nil
	}
}

func (p *parser) parseWordAtom(t Token) *Node {
	n := newAtom(AtomText, t.Text)
	n.Atom.Glob = !t.Quoted && strings.ContainsAny(t.Text, "*?")
	return n
}

var modifierFields = map[string]bool{
	"case": true, "nocase": true,
	"path": true, "nopath": true,
	"regex": true, "noregex": true,
	"exact":  true,
	"file":   true, "files": true,
	"folder": true, "folders": true,
}

func (p *parser) parseField() *Node {
	field := p.advance() // consumes the Field token itself
	name := strings.ToLower(field.Text)

	switch name {
	case "case", "nocase", "path", "nopath", "regex", "noregex", "exact",
		"file", "files", "folder", "folders":
		sub := p.parseUnary()
		if sub == nil {
			sub = newAtom(AtomMatchAll, "")
		}
		applyModifier(sub, name)
		return sub
	case "size":
		return p.parseSizeField()
	case "ext":
		return p.parseExtField()
	case "date-modified":
		return p.parseDateField()
	case "filter":
		t := p.takeArgToken()
		return p.resolveFilter(strings.ToLower(t.Text))
	default:
		p.diags = append(p.diags, Diagnostic{Field: field.Text, Err: fmt.Errorf("query: unknown field %q", field.Text)})
		n := newAtom(AtomMatchAll, "")
		n.Atom.BadField = field.Text
		// Still consume one operand-shaped token so the rest of the
		// query parses sanely.
		p.parseUnary()
		return n
	}
}

func applyModifier(n *Node, field string) {
	if n.Kind != NodeAtom {
		for _, c := range n.Children {
			applyModifier(c, field)
		}
		return
	}
	a := n.Atom
	switch field {
	case "case":
		a.CaseSet, a.MatchCase = true, true
	case "nocase":
		a.CaseSet, a.MatchCase = true, false
	case "path":
		a.PathSet, a.InPath = true, true
	case "nopath":
		a.PathSet, a.InPath = true, false
	case "regex":
		a.Regex, a.Glob = true, false
	case "noregex":
		a.Regex = false
	case "exact":
		a.Exact = true
	case "file", "files":
		a.KindFilter = FilterFilesOnly
	case "folder", "folders":
		a.KindFilter = FilterFoldersOnly
	}
}

func (p *parser) parseExtField() *Node {
	t := p.takeArgToken()
	n := newAtom(AtomExt, t.Text)
	n.Atom.Ext = strings.Split(t.Text, ";")
	return n
}

// comparatorText maps a comparator token back to the symbol ParseSize and
// ParseDate expect as a string prefix.
func comparatorText(k TokenKind) (string, bool) {
	switch k {
	case TokEQ:
		return "=", true
	case TokLT:
		return "<", true
	case TokLE:
		return "<=", true
	case TokGT:
		return ">", true
	case TokGE:
		return ">=", true
	}
	return "", false
}

func (p *parser) parseSizeField() *Node {
	var raw strings.Builder
	if sym, ok := comparatorText(p.cur().Kind); ok {
		raw.WriteString(sym)
		p.advance()
	}
	raw.WriteString(p.takeArgToken().Text)

	n := newAtom(AtomSize, raw.String())
	sz, err := ParseSize(raw.String())
	if err != nil {
		p.diags = append(p.diags, Diagnostic{Field: "size", Err: err})
		n.Atom.Kind = AtomMatchAll
		n.Atom.BadField = "size"
		return n
	}
	n.Atom.Size = &sz
	return n
}

func (p *parser) parseDateField() *Node {
	var raw strings.Builder
	if sym, ok := comparatorText(p.cur().Kind); ok {
		raw.WriteString(sym)
		p.advance()
	}
	raw.WriteString(p.takeDateArgument())

	n := newAtom(AtomDateModified, raw.String())
	// ParseDate runs here only to validate the argument; the matcher
	// resolves it again against its own "now" in match.Compile, so a
	// long-lived parsed query stays relative.
	if _, err := ParseDate(raw.String(), time.Now()); err != nil {
		p.diags = append(p.diags, Diagnostic{Field: "date-modified", Err: err})
		n.Atom.Kind = AtomMatchAll
		n.Atom.BadField = "date-modified"
	}
	return n
}

// takeArgToken consumes and returns the next token verbatim, treating
// TokEOF as an empty word so malformed trailing fields don't panic.
func (p *parser) takeArgToken() Token {
	if p.cur().Kind == TokEOF {
		return Token{Kind: TokWord, Text: ""}
	}
	return p.advance()
}

// takeDateArgument consumes the date-modified: argument, which may be a
// quoted multi-word phrase ("past 3 years"), a single symbolic word
// (today, yesterday, thishour), an ISO prefix, or an unquoted two/three
// word phrase (past N years, N minutes, last two weeks).
func (p *parser) takeDateArgument() string {
	first := p.cur()
	if first.Quoted {
		p.advance()
		return first.Text
	}
	if first.Kind != TokWord {
		return p.takeArgToken().Text
	}
	low := strings.ToLower(first.Text)
	if low == "today" || low == "yesterday" || low == "thishour" || low == "past" || low == "last" {
		if low == "past" || low == "last" {
			if p.at(1).Kind == TokWord && p.at(2).Kind == TokWord {
				words := []string{p.advance().Text, p.advance().Text, p.advance().Text}
				return strings.Join(words, " ")
			}
		}
		p.advance()
		return low
	}
	// "N unit" with no past/last prefix.
	if isAllDigits(first.Text) && p.at(1).Kind == TokWord {
		words := []string{p.advance().Text, p.advance().Text}
		return strings.Join(words, " ")
	}
	p.advance()
	return first.Text
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
