package entry

import "strings"

// CompareCtx threads comparator-specific side tables through a sort or
// search call — currently only the file-type sniffer used by CompareType.
type CompareCtx struct {
	Sniff func(*Entry) string
}

func tieBreak(a, b *Entry) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(Path(a), Path(b))
}

// CompareName orders by name, then by full path to guarantee a total
// order even among same-named siblings under different parents.
func CompareName(a, b *Entry, _ any) int {
	return tieBreak(a, b)
}

// ComparePath orders by full path.
func ComparePath(a, b *Entry, _ any) int {
	if c := strings.Compare(Path(a), Path(b)); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// CompareSize orders by size ascending, tie-broken by name/path.
func CompareSize(a, b *Entry, _ any) int {
	if a.Size < b.Size {
		return -1
	}
	if a.Size > b.Size {
		return 1
	}
	return tieBreak(a, b)
}

// CompareMtime orders by modification time ascending.
func CompareMtime(a, b *Entry, _ any) int {
	if a.Mtime < b.Mtime {
		return -1
	}
	if a.Mtime > b.Mtime {
		return 1
	}
	return tieBreak(a, b)
}

// CompareExtension orders by lowercased extension.
func CompareExtension(a, b *Entry, _ any) int {
	if c := strings.Compare(Extension(a), Extension(b)); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// CompareFileType orders by cached content-type string, sniffing through
// ctx.(*CompareCtx).Sniff on first access per entry.
func CompareFileType(a, b *Entry, ctx any) int {
	var sniff func(*Entry) string
	if cc, ok := ctx.(*CompareCtx); ok {
		sniff = cc.Sniff
	}
	ta, tb := FileType(a, sniff), FileType(b, sniff)
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return tieBreak(a, b)
}

// CompareDepth orders by ancestor-chain depth.
func CompareDepth(a, b *Entry, _ any) int {
	da, db := Depth(a), Depth(b)
	if da != db {
		return da - db
	}
	return tieBreak(a, b)
}

// CompareChildCounts orders folders by total child count (files+folders);
// for files it falls back to the tie-break only.
func CompareChildCounts(a, b *Entry, _ any) int {
	ca := int(a.ChildFiles) + int(a.ChildFolders)
	cb := int(b.ChildFiles) + int(b.ChildFolders)
	if ca != cb {
		return ca - cb
	}
	return tieBreak(a, b)
}
