package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// MinDiskSpaceBytes is the free space the logs and journal need.
const MinDiskSpaceBytes = 50 * 1024 * 1024

// lowDiskFactor marks space below this multiple of the minimum as a warning.
const lowDiskFactor = 4

// CheckDiskSpace reports the tightest free space among the filesystems
// holding dirs. A dir that does not exist yet is measured at its nearest
// existing parent. Each filesystem is measured once.
func (c *Checker) CheckDiskSpace(dirs ...string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	seen := make(map[uint64]bool)
	var (
		tightest uint64
		where    string
		measured []string
	)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		existing, dev, err := nearestExisting(dir)
		if err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("cannot inspect %s: %v", dir, err)
			return result
		}
		if seen[dev] {
			continue
		}
		seen[dev] = true

		var stat unix.Statfs_t
		if err := unix.Statfs(existing, &stat); err != nil {
			result.Status = StatusFail
			result.Message = fmt.Sprintf("failed to check disk space at %s: %v", existing, err)
			return result
		}
		avail := stat.Bavail * uint64(stat.Bsize)
		measured = append(measured, fmt.Sprintf("%s: %s", existing, humanize.IBytes(avail)))
		if where == "" || avail < tightest {
			tightest, where = avail, existing
		}
	}

	if where == "" {
		result.Status = StatusWarn
		result.Message = "no directories to check"
		return result
	}

	result.Message = fmt.Sprintf("%s free at %s (minimum: %s)",
		humanize.IBytes(tightest), where, humanize.IBytes(MinDiskSpaceBytes))
	if len(measured) > 1 {
		result.Details = strings.Join(measured, ", ")
	}

	switch {
	case tightest < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = "Free space or point journal.path and the log directory elsewhere"
	case tightest < lowDiskFactor*MinDiskSpaceBytes:
		result.Status = StatusWarn
	default:
		result.Status = StatusPass
	}
	return result
}

// nearestExisting walks up from dir to the first path that exists and
// returns it with its device number.
func nearestExisting(dir string) (string, uint64, error) {
	p := filepath.Clean(dir)
	for {
		var st unix.Stat_t
		err := unix.Stat(p, &st)
		if err == nil {
			return p, uint64(st.Dev), nil //nolint:unconvert // int32 on darwin
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", 0, err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", 0, err
		}
		p = parent
	}
}
