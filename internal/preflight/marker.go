package preflight

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records the last successful doctor run inside the data directory.
const MarkerFile = ".preflight-passed"

// Marker is the content of MarkerFile.
type Marker struct {
	PassedAt time.Time `json:"passed_at"`
	Version  string    `json:"version"`
}

// NeedsCheck reports whether preflight should run before starting a daemon:
// no marker exists, it is unreadable, or it was written by another version.
func NeedsCheck(dataDir, version string) bool {
	m, err := readMarker(dataDir)
	if err != nil {
		return true
	}
	return m.Version != version
}

// MarkPassed records that checks passed for version.
func MarkPassed(dataDir, version string) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	data, err := json.Marshal(Marker{PassedAt: time.Now().UTC(), Version: version})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, MarkerFile), data, 0o644)
}

// ClearMarker removes the marker file, forcing a re-check on next run.
func ClearMarker(dataDir string) error {
	err := os.Remove(filepath.Join(dataDir, MarkerFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// MarkerAge returns how long ago checks passed, or zero without a marker.
func MarkerAge(dataDir string) time.Duration {
	m, err := readMarker(dataDir)
	if err != nil {
		return 0
	}
	return time.Since(m.PassedAt)
}

func readMarker(dataDir string) (Marker, error) {
	var m Marker
	data, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	return m, nil
}
