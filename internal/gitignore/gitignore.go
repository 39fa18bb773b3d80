package gitignore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

type rule struct {
	glob     string
	negation bool
	dirOnly  bool
	// base is the slash-separated directory the rule applies under; "" is the root.
	base string
}

// Matcher holds compiled rules. It is safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []rule
}

// New returns an empty Matcher that ignores nothing.
func New() *Matcher {
	return &Matcher{}
}

// Load returns a Matcher for the repository or directory at root, reading
// root/.gitignore and root/.git/info/exclude when present.
func Load(root string) (*Matcher, error) {
	m := New()
	for _, p := range []string{
		filepath.Join(root, ".git", "info", "exclude"),
		filepath.Join(root, ".gitignore"),
	} {
		if err := m.AddFromFile(p, ""); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return m, nil
}

// Len returns the number of rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// AddPattern adds one .gitignore line that applies from the root.
func (m *Matcher) AddPattern(line string) {
	m.AddPatternWithBase(line, "")
}

// AddPatternWithBase adds one line declared by the .gitignore in base.
func (m *Matcher) AddPatternWithBase(line, base string) {
	r, ok := parseRule(line)
	if !ok {
		return
	}
	r.base = strings.Trim(filepath.ToSlash(base), "/")

	m.mu.Lock()
	m.rules = append(m.rules, r)
	m.mu.Unlock()
}

// AddFromFile adds every rule in the file at p. base is the directory of
// the file relative to the root.
func (m *Matcher) AddFromFile(p, base string) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := m.addFrom(f, base); err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	return nil
}

func (m *Matcher) addFrom(r io.Reader, base string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.AddPatternWithBase(scanner.Text(), base)
	}
	return scanner.Err()
}

// Match reports whether rel is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	return m.Ignored(rel, func() bool { return isDir })
}

// Ignored reports whether rel is ignored. isDir is only called when a
// directory-only rule matches rel itself, so callers can defer a stat.
func (m *Matcher) Ignored(rel string, isDir func() bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.rules) == 0 {
		return false
	}

	// An ignored ancestor hides everything below it.
	for i := 1; i < len(rel); i++ {
		if rel[i] == '/' && m.decide(rel[:i], isDirectory) {
			return true
		}
	}
	return m.decide(rel, isDir)
}

// decide applies the rules to p alone; the last match wins.
func (m *Matcher) decide(p string, isDir func() bool) bool {
	ignored := false
	dir, known := false, false
	for _, r := range m.rules {
		sub, ok := underBase(p, r.base)
		if !ok {
			continue
		}
		if match, _ := doublestar.Match(r.glob, sub); !match {
			continue
		}
		if r.dirOnly {
			if !known {
				dir, known = isDir(), true
			}
			if !dir {
				continue
			}
		}
		ignored = !r.negation
	}
	return ignored
}

func isDirectory() bool { return true }

func underBase(p, base string) (string, bool) {
	if base == "" {
		return p, true
	}
	if rest, ok := strings.CutPrefix(p, base+"/"); ok {
		return rest, true
	}
	return "", false
}

// parseRule turns one line into a rule. Comments and blank lines yield false.
func parseRule(line string) (rule, bool) {
	line = strings.TrimSuffix(line, "\r")

	// Trailing spaces are dropped unless escaped.
	escapedSpace := strings.HasSuffix(line, `\ `)
	line = strings.TrimRight(line, " \t")
	if escapedSpace {
		line = strings.TrimSuffix(line, `\`) + " "
	}
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	switch {
	case strings.HasPrefix(line, `\#`), strings.HasPrefix(line, `\!`):
		line = line[1:]
	case strings.HasPrefix(line, "!"):
		r.negation = true
		line = line[1:]
	}

	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if line == "" {
		return rule{}, false
	}

	anchored := strings.Contains(line, "/")
	line = strings.TrimPrefix(line, "/")
	if !anchored && !strings.HasPrefix(line, "**") {
		line = "**/" + line
	}
	r.glob = path.Clean(line)
	return r, doublestar.ValidatePattern(r.glob)
}

// ParsePatterns returns the rule lines in content, without comments or
// blank lines.
func ParsePatterns(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if _, ok := parseRule(line); ok {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
