package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// MinInotifyWatches is the max_user_watches value below which large trees
// are likely to hit ERR_204_WATCH_LIMIT_EXCEEDED.
const MinInotifyWatches = 8192

var inotifyWatchesPath = "/proc/sys/fs/inotify/max_user_watches"

// CheckInotifyWatches reads the per-user inotify watch limit on Linux. Each
// watched directory consumes one watch.
func (c *Checker) CheckInotifyWatches() CheckResult {
	result := CheckResult{Name: "inotify_watches"}

	if runtime.GOOS != "linux" {
		result.Status = StatusPass
		result.Message = "not applicable on " + runtime.GOOS
		return result
	}

	limit, err := readInotifyLimit(inotifyWatchesPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unable to read limit: %v", err)
		result.Details = "The polling backend works without inotify: --backend polling"
		return result
	}

	result.Message = fmt.Sprintf("%d (recommended: %d)", limit, MinInotifyWatches)
	if limit < MinInotifyWatches {
		result.Status = StatusWarn
		result.Details = "Run 'sudo sysctl fs.inotify.max_user_watches=524288' to raise the limit"
		return result
	}

	result.Status = StatusPass
	return result
}

func readInotifyLimit(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
