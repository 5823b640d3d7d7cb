package query

import "fmt"

// NamedFilters mirrors fsearch's filter manager (fsearch_filter.c /
// fsearch_filter_manager.c): a small library of reusable, named
// sub-expressions a query can pull in with filter:<name> instead of
// spelling out the same ext: list every time. Each entry is itself query
// text, parsed and spliced into the referencing query's AST.
var NamedFilters = map[string]string{
	"pictures":  `ext:bmp;gif;heic;jpeg;jpg;png;svg;tif;tiff;webp`,
	"music":     `ext:aac;flac;m4a;mp3;ogg;opus;wav;wma`,
	"video":     `ext:avi;flv;m4v;mkv;mov;mp4;mpeg;mpg;webm;wmv`,
	"documents": `ext:doc;docx;odt;pdf;ppt;pptx;rtf;txt;xls;xlsx`,
	"archives":  `ext:7z;bz2;gz;rar;tar;xz;zip`,
}

// resolveFilter looks up name in NamedFilters and parses it fresh so every
// reference gets its own AST nodes (no shared mutable state between
// occurrences in the same or different queries). Unknown names downgrade
// to a match-everything placeholder and are reported like any other bad
// field argument.
func (p *parser) resolveFilter(name string) *Node {
	text, ok := NamedFilters[name]
	if !ok {
		p.diags = append(p.diags, Diagnostic{Field: "filter", Err: fmt.Errorf("query: unknown filter %q", name)})
		n := newAtom(AtomMatchAll, "")
		n.Atom.BadField = "filter:" + name
		return n
	}
	sub := Parse(text)
	p.diags = append(p.diags, sub.Diagnostics...)
	return sub.Root
}
