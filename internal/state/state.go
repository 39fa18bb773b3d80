// Package state persists small pieces of application state between runs:
// the current project, recently used projects and the UI theme.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

const (
	// MaxRecentProjects bounds the recent project list.
	MaxRecentProjects = 10

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// State is the persisted document.
type State struct {
	CurrentProject string   `json:"currentProject,omitempty"`
	RecentProjects []string `json:"recentProjects"`
	Theme          string   `json:"theme"`
	// LastOpened is RFC3339, set whenever the current project changes.
	LastOpened string `json:"lastOpened,omitempty"`
}

// Default returns the state used when nothing has been saved yet.
func Default() State {
	return State{RecentProjects: []string{}, Theme: ThemeLight}
}

// Store reads and writes State at a fixed path. Every mutation holds a
// cross-process lock for the whole read-modify-write.
type Store struct {
	path string
	lock *flock.Flock
	now  func() time.Time
}

// DefaultPath returns $XDG_CONFIG_HOME/treewatch/state.json or
// ~/.config/treewatch/state.json.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "treewatch", "state.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "treewatch", "state.json"), nil
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Load reads the state. A missing file yields Default().
func (s *Store) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}

	st := Default()
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, errs.New(errs.ErrCodeStateCorrupt, "parse state file "+s.path, err).
			WithSuggestion("delete the file to start over")
	}
	if st.Theme == "" {
		st.Theme = ThemeLight
	}
	if st.RecentProjects == nil {
		st.RecentProjects = []string{}
	}
	return st, nil
}

// SetCurrentProject makes project current and moves it to the front of the
// recent list.
func (s *Store) SetCurrentProject(project string) (State, error) {
	abs, err := filepath.Abs(project)
	if err != nil {
		return State{}, errs.New(errs.ErrCodeInvalidPath, "resolve project path", err)
	}
	abs = filepath.Clean(abs)

	return s.update(func(st *State) error {
		st.CurrentProject = abs
		st.LastOpened = s.now().UTC().Format(time.RFC3339)
		st.RecentProjects = touchRecent(st.RecentProjects, abs)
		return nil
	})
}

// RecentProjects returns the recent list, most recent first.
func (s *Store) RecentProjects() ([]string, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	return st.RecentProjects, nil
}

// ClearRecent empties the recent list, keeping the current project.
func (s *Store) ClearRecent() error {
	_, err := s.update(func(st *State) error {
		st.RecentProjects = []string{}
		return nil
	})
	return err
}

// Theme returns the saved theme.
func (s *Store) Theme() (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.Theme, nil
}

// SetTheme saves theme, which must be ThemeLight or ThemeDark.
func (s *Store) SetTheme(theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return errs.ValidationError(fmt.Sprintf("unknown theme %q", theme), nil).
			WithSuggestion("use light or dark")
	}
	_, err := s.update(func(st *State) error {
		st.Theme = theme
		return nil
	})
	return err
}

func (s *Store) update(fn func(*State) error) (State, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return State{}, fmt.Errorf("create state directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return State{}, fmt.Errorf("lock state: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	st, err := s.Load()
	if err != nil {
		return State{}, err
	}
	if err := fn(&st); err != nil {
		return State{}, err
	}
	if err := s.save(st); err != nil {
		return State{}, err
	}
	return st, nil
}

// save writes atomically: temp file, then rename.
func (s *Store) save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// touchRecent returns recent with project moved to the front, deduplicated
// and capped at MaxRecentProjects.
func touchRecent(recent []string, project string) []string {
	cache, _ := lru.New[string, struct{}](MaxRecentProjects)
	for _, p := range slices.Backward(recent) {
		cache.Add(p, struct{}{})
	}
	cache.Add(project, struct{}{})

	// Keys are oldest first.
	keys := cache.Keys()
	slices.Reverse(keys)
	return keys
}
