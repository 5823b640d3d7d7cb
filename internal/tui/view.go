package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/caldwell-labs/fsindex/internal/entry"
	"github.com/caldwell-labs/fsindex/internal/match"
	"github.com/caldwell-labs/fsindex/internal/query"
)

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	headerLines := 0
	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("fsindex - interactive browser"))

	if m.err != nil {
		writeLine(errStyle.Render(fmt.Sprintf("error: %v", m.err)))
	}

	if m.editing {
		writeLine(queryStyle.Render("query: " + m.input.View()))
	} else {
		writeLine(queryStyle.Render("query: " + m.queryText))
	}

	nf, nfo := 0, 0
	if v := m.db.View(viewID); v != nil {
		nf, nfo = v.NumSelected()
	}
	status := fmt.Sprintf("%s results (%s folders, %s files) | sort: %s %s | selected: %s",
		formatCount(m.numRows()), formatCount(m.folderCount()), formatCount(m.fileCount()),
		sortLabel(m.sortProp), m.sortDir, formatCount(nf+nfo))
	if m.searching {
		status = m.spin.View() + " searching... | " + status
	}
	writeLine(statusStyle.Render(status))

	writeLine(headerStyle.Render(fmt.Sprintf("%-8s %10s %16s  %s", "TYPE", "SIZE", "MODIFIED", "NAME")))

	footerLines := 2
	visibleRows := m.height - headerLines - footerLines
	if visibleRows < 5 {
		visibleRows = 5
	}
	start := 0
	if m.cursor >= visibleRows {
		start = m.cursor - visibleRows + 1
	}
	end := start + visibleRows
	if n := m.numRows(); end > n {
		end = n
	}

	matcher := m.rowMatcher()
	for i := start; i < end; i++ {
		e := m.rowAt(i)
		if e == nil {
			continue
		}
		b.WriteString(m.formatRow(e, i == m.cursor, matcher))
		b.WriteString("\n")
	}
	for i := end - start; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m *Model) folderCount() int {
	if m.result == nil {
		return 0
	}
	return m.result.Folders.Len()
}

func (m *Model) fileCount() int {
	if m.result == nil {
		return 0
	}
	return m.result.Files.Len()
}

// rowMatcher recompiles a Matcher for the current query text so visible
// rows can be highlighted — cheap since it only runs over the handful of
// rows actually rendered, not the whole result set.
func (m *Model) rowMatcher() *match.Matcher {
	if m.queryText == "" {
		return nil
	}
	parsed := query.Parse(m.queryText)
	return match.Compile(parsed.Root, match.Defaults{}, time.Now())
}

func (m *Model) formatRow(e *entry.Entry, selected bool, matcher *match.Matcher) string {
	kind := "file"
	if e.Kind == entry.KindFolder {
		kind = "dir"
	}
	size := ""
	if e.Kind == entry.KindFile {
		size = formatSize(e.Size)
	}
	name := e.Name
	if e.Kind == entry.KindFolder {
		name += "/"
	}

	rendered := name
	if matcher != nil {
		if ok, ranges := matcher.Eval(e, true); ok && len(ranges) > 0 {
			rendered = highlightName(name, ranges)
		}
	}

	style := fileStyle
	if e.Kind == entry.KindFolder {
		style = dirStyle
	}
	nameCell := style.Render(rendered)

	line := fmt.Sprintf("%-8s %10s %16s  %s", kind, size, formatMtime(e.Mtime), nameCell)
	if selected {
		return selectedStyle.Render(line)
	}
	return line
}

// highlightName re-renders name with every FieldName range wrapped in
// matchStyle; ranges of other fields are skipped, and name ranges are
// clipped to the name's length.
func highlightName(name string, ranges []match.Range) string {
	type seg struct{ start, end int }
	var segs []seg
	for _, r := range ranges {
		if r.Field != match.FieldName {
			continue
		}
		start, end := r.Start, r.End
		if start < 0 {
			start = 0
		}
		if end > len(name) {
			end = len(name)
		}
		if start >= end {
			continue
		}
		segs = append(segs, seg{start, end})
	}
	if len(segs) == 0 {
		return name
	}

	var b strings.Builder
	pos := 0
	for _, s := range segs {
		if s.start < pos {
			continue
		}
		b.WriteString(name[pos:s.start])
		b.WriteString(matchStyle.Render(name[s.start:s.end]))
		pos = s.end
	}
	b.WriteString(name[pos:])
	return b.String()
}
