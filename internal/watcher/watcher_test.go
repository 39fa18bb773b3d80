package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.False(t, opts.NonRecursive)
	assert.Equal(t, BackendFsnotify, opts.Backend)
	assert.True(t, opts.Filter.Match("a.md"))
	assert.False(t, opts.Filter.Match("a.txt"))
	assert.NoError(t, opts.Validate())
}

func TestOptions_WithDefaults_FillsZeroValues(t *testing.T) {
	opts := Options{DebounceWindow: 10 * time.Millisecond}.WithDefaults()

	assert.Equal(t, 10*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 2*time.Second, opts.PollInterval)
	assert.Equal(t, 1000, opts.EventBufferSize)
	assert.NotNil(t, opts.Filter)
	assert.NotNil(t, opts.Inspector)
	assert.NotNil(t, opts.Logger)
	assert.Equal(t, DefaultIgnores(), opts.Ignore)
}

func TestOptions_WithDefaults_KeepsEmptyIgnore(t *testing.T) {
	opts := Options{Ignore: []string{}}.WithDefaults()
	assert.Empty(t, opts.Ignore)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code string
	}{
		{"negative debounce", Options{DebounceWindow: -time.Second}, errs.ErrCodeInvalidInput},
		{"negative poll", Options{PollInterval: -time.Second}, errs.ErrCodeInvalidInput},
		{"unknown backend", Options{Backend: "kqueue"}, errs.ErrCodeInvalidInput},
		{"bad ignore", Options{Ignore: []string{"a/["}}, errs.ErrCodeInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, errs.GetCode(tt.opts.Validate()))
		})
	}
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "WRITE|REMOVE", (OpWrite | OpRemove).String())
	assert.Equal(t, "NONE", Op(0).String())
	assert.True(t, (OpRemove | OpRename).Has(OpRename))
}

func TestCanonicalize(t *testing.T) {
	dir := canonicalTempDir(t)

	got, err := Canonicalize(dir + "/sub/..")
	assert.NoError(t, err)
	assert.Equal(t, dir, got)

	_, err = Canonicalize(join(dir, "nope"))
	assert.ErrorIs(t, err, errs.ErrPathNotFound)
}
