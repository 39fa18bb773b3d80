package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString_ContainsBuildDetails(t *testing.T) {
	s := String()

	assert.True(t, strings.HasPrefix(s, "treewatch "))
	assert.Contains(t, s, "commit:")
	assert.Contains(t, s, GoVersion)
}

func TestShort_MatchesInfo(t *testing.T) {
	assert.Equal(t, GetInfo().Version, Short())
	assert.NotEmpty(t, Short())
}

func TestGetInfo_LdflagsWin(t *testing.T) {
	// Given: values injected at link time
	orig := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = orig[0], orig[1], orig[2] })
	Version, Commit, Date = "v1.2.3", "abc1234", "2026-01-01T00:00:00Z"

	// When / Then: they are reported unchanged
	info := GetInfo()
	assert.Equal(t, "v1.2.3", info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-01T00:00:00Z", info.Date)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestBuildInfo_JSONFields(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, m, k)
	}
}
