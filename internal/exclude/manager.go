// Package exclude implements the exclude manager of spec.md §4.6: a set of
// absolute excluded paths, file/directory glob patterns, and a global
// exclude-hidden flag.
package exclude

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

// PathRule is an absolute path excluded from scanning, with an active bit
// so the UI (out of scope here) can toggle rules without deleting them.
type PathRule struct {
	Path   string
	Active bool
}

// Manager holds the three exclude collections plus the hidden-file flag.
type Manager struct {
	mu             sync.RWMutex
	paths          []PathRule
	filePatterns   []glob.Glob
	dirPatterns    []glob.Glob
	filePatternSrc []string
	dirPatternSrc  []string
	excludeHidden  bool
}

// New creates an empty exclude manager.
func New() *Manager {
	return &Manager{}
}

// SetExcludeHidden toggles whether dotfiles are excluded.
func (m *Manager) SetExcludeHidden(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.excludeHidden = v
}

// ExcludeHidden reports the current hidden-file policy.
func (m *Manager) ExcludeHidden() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.excludeHidden
}

// AddPath registers an absolute path exclusion, active by default.
func (m *Manager) AddPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, PathRule{Path: filepath.Clean(path), Active: true})
}

// AddFilePattern registers a glob pattern applied to file basenames.
func (m *Manager) AddFilePattern(pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filePatterns = append(m.filePatterns, g)
	m.filePatternSrc = append(m.filePatternSrc, pattern)
	return nil
}

// AddDirPattern registers a glob pattern applied to directory basenames.
func (m *Manager) AddDirPattern(pattern string) error {
	g, err := glob.Compile(pattern)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirPatterns = append(m.dirPatterns, g)
	m.dirPatternSrc = append(m.dirPatternSrc, pattern)
	return nil
}

// Excludes reports whether path (with basename split out for pattern
// matching) is excluded, distinguishing files from directories.
func (m *Manager) Excludes(path, basename string, isDir bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.excludeHidden && strings.HasPrefix(basename, ".") {
		return true
	}

	clean := filepath.Clean(path)
	for _, rule := range m.paths {
		if !rule.Active {
			continue
		}
		if rule.Path == clean || strings.HasPrefix(clean, rule.Path+string(filepath.Separator)) {
			return true
		}
	}

	patterns := m.filePatterns
	if isDir {
		patterns = m.dirPatterns
	}
	for _, g := range patterns {
		if g.Match(basename) {
			return true
		}
	}
	return false
}

// FilePatterns returns the configured file glob source strings.
func (m *Manager) FilePatterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.filePatternSrc))
	copy(out, m.filePatternSrc)
	return out
}

// DirPatterns returns the configured directory glob source strings.
func (m *Manager) DirPatterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.dirPatternSrc))
	copy(out, m.dirPatternSrc)
	return out
}

// Paths returns the configured absolute-path rules.
func (m *Manager) Paths() []PathRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PathRule, len(m.paths))
	copy(out, m.paths)
	return out
}
