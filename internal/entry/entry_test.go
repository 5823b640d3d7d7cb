package entry

import "testing"

func TestDepthAndPath(t *testing.T) {
	root := &Entry{Name: "root", Kind: KindFolder}
	sub := &Entry{Name: "sub", Parent: root, Kind: KindFolder}
	leaf := &Entry{Name: "leaf.txt", Parent: sub, Kind: KindFile}

	if d := Depth(root); d != 0 {
		t.Fatalf("Depth(root) = %d, want 0", d)
	}
	if d := Depth(leaf); d != 2 {
		t.Fatalf("Depth(leaf) = %d, want 2", d)
	}
	if got, want := Path(leaf), "root/sub/leaf.txt"; got != want {
		t.Fatalf("Path(leaf) = %q, want %q", got, want)
	}
}

func TestExtension(t *testing.T) {
	cases := []struct {
		name string
		kind Kind
		want string
	}{
		{"a.TXT", KindFile, "txt"},
		{"noext", KindFile, ""},
		{".hidden", KindFile, ""},
		{"trailing.", KindFile, ""},
		{"dir.withdot", KindFolder, ""},
		{"a.tar.gz", KindFile, "gz"},
	}
	for _, c := range cases {
		e := &Entry{Name: c.name, Kind: c.kind}
		if got := Extension(e); got != c.want {
			t.Errorf("Extension(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestUpdateParentSizePropagates(t *testing.T) {
	root := &Entry{Name: "root", Kind: KindFolder}
	sub := &Entry{Name: "sub", Parent: root, Kind: KindFolder}
	file := &Entry{Name: "f", Parent: sub, Kind: KindFile, Size: 10}

	UpdateParentSize(file, 10)
	if sub.Size != 10 || root.Size != 10 {
		t.Fatalf("after +10: sub=%d root=%d, want 10/10", sub.Size, root.Size)
	}

	UpdateParentSize(file, -10)
	if sub.Size != 0 || root.Size != 0 {
		t.Fatalf("after -10: sub=%d root=%d, want 0/0", sub.Size, root.Size)
	}
}

func TestUpdateParentSizeNeverUnderflows(t *testing.T) {
	root := &Entry{Name: "root", Kind: KindFolder, Size: 5}
	file := &Entry{Name: "f", Parent: root, Kind: KindFile}

	UpdateParentSize(file, -100)
	if root.Size != 0 {
		t.Fatalf("root.Size = %d, want 0 (clamped, not underflowed)", root.Size)
	}
}

func TestFileTypeCaches(t *testing.T) {
	e := &Entry{Name: "a.bin", Kind: KindFile}
	calls := 0
	sniff := func(*Entry) string {
		calls++
		return "application/octet-stream"
	}
	first := FileType(e, sniff)
	second := FileType(e, sniff)
	if first != second || calls != 1 {
		t.Fatalf("FileType sniffed %d times, want 1 (cached)", calls)
	}
}

func TestResetZeroesEntry(t *testing.T) {
	e := &Entry{Name: "a", Size: 10, Mark: true}
	Reset(e)
	if e.Name != "" || e.Size != 0 || e.Mark {
		t.Fatalf("Reset left non-zero entry: %+v", e)
	}
}
