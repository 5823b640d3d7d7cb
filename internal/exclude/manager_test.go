package exclude

import "testing"

func TestExcludeHiddenFlag(t *testing.T) {
	m := New()
	if m.Excludes("/home/user/.bashrc", ".bashrc", false) {
		t.Fatal("hidden files should not be excluded by default")
	}
	m.SetExcludeHidden(true)
	if !m.ExcludeHidden() {
		t.Fatal("ExcludeHidden() should reflect SetExcludeHidden(true)")
	}
	if !m.Excludes("/home/user/.bashrc", ".bashrc", false) {
		t.Fatal("dotfile should be excluded once ExcludeHidden is set")
	}
	if m.Excludes("/home/user/visible.txt", "visible.txt", false) {
		t.Fatal("non-dotfile should not be excluded by the hidden flag")
	}
}

func TestExcludePathRuleMatchesSubtree(t *testing.T) {
	m := New()
	m.AddPath("/home/user/node_modules")

	if !m.Excludes("/home/user/node_modules", "node_modules", true) {
		t.Fatal("exact path match should be excluded")
	}
	if !m.Excludes("/home/user/node_modules/pkg/index.js", "index.js", false) {
		t.Fatal("descendant of an excluded path should be excluded")
	}
	if m.Excludes("/home/user/node_modules_backup", "node_modules_backup", true) {
		t.Fatal("sibling sharing a prefix but not a path separator boundary must not match")
	}
}

func TestExcludeFilePatternAppliesOnlyToFiles(t *testing.T) {
	m := New()
	if err := m.AddFilePattern("*.log"); err != nil {
		t.Fatalf("AddFilePattern: %v", err)
	}
	if !m.Excludes("/var/log/app.log", "app.log", false) {
		t.Fatal("app.log should match *.log file pattern")
	}
	if m.Excludes("/var/log/app.log.d", "app.log.d", true) {
		t.Fatal("directory should not match a file pattern")
	}
}

func TestExcludeDirPatternAppliesOnlyToDirs(t *testing.T) {
	m := New()
	if err := m.AddDirPattern(".git"); err != nil {
		t.Fatalf("AddDirPattern: %v", err)
	}
	if !m.Excludes("/repo/.git", ".git", true) {
		t.Fatal(".git directory should match the dir pattern")
	}
	if m.Excludes("/repo/.gitignore", ".gitignore", false) {
		t.Fatal("a file should not match a directory-only pattern")
	}
}

func TestExcludeAddPathRegistersActiveRule(t *testing.T) {
	m := New()
	m.AddPath("/tmp/ignored")
	paths := m.Paths()
	if len(paths) != 1 || paths[0].Path != "/tmp/ignored" || !paths[0].Active {
		t.Fatalf("Paths() = %+v, want one active rule for /tmp/ignored", paths)
	}
}

func TestPatternAccessorsReturnCopies(t *testing.T) {
	m := New()
	if err := m.AddFilePattern("*.tmp"); err != nil {
		t.Fatalf("AddFilePattern: %v", err)
	}
	got := m.FilePatterns()
	got[0] = "mutated"
	if m.FilePatterns()[0] != "*.tmp" {
		t.Fatal("FilePatterns() should return a defensive copy")
	}
}
