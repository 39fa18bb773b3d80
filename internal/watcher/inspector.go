package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

// Inspector is the directory-enumeration primitive consulted when a watch starts.
type Inspector interface {
	Exists(path string) (bool, error)
	IsDir(path string) (bool, error)
}

type osInspector struct{}

func (osInspector) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (osInspector) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Canonicalize resolves path to an absolute, symlink-free, cleaned form.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errs.New(errs.ErrCodeInvalidPath, "resolve absolute path: "+path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", classifyPathError(abs, err)
	}
	return filepath.Clean(resolved), nil
}

// validateRoot checks root through the inspector and returns its canonical form.
func validateRoot(insp Inspector, root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", errs.New(errs.ErrCodeInvalidPath, "resolve absolute path: "+root, err)
	}
	exists, err := insp.Exists(abs)
	if err != nil {
		return "", classifyPathError(abs, err)
	}
	if !exists {
		return "", errs.PathNotFound(abs, nil)
	}
	canonical, err := Canonicalize(abs)
	if err != nil {
		return "", err
	}
	isDir, err := insp.IsDir(canonical)
	if err != nil {
		return "", classifyPathError(canonical, err)
	}
	if !isDir {
		return "", errs.NotADirectory(canonical)
	}
	return canonical, nil
}

func classifyPathError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.PathNotFound(path, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.PermissionDenied(path, err)
	default:
		return errs.New(errs.ErrCodeInvalidPath, "inspect "+path, err)
	}
}

func isLimitError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}

func isPermissionError(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.EPERM)
}

// classifyAttachError maps an error from attaching a source to the watch error taxonomy.
func classifyAttachError(root string, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case isLimitError(err):
		return errs.WatchLimitExceeded(root, err)
	case isPermissionError(err):
		return errs.PermissionDenied(root, err)
	case errors.Is(err, fs.ErrNotExist):
		return errs.PathNotFound(root, err)
	default:
		return errs.SourceFailure(root, err)
	}
}

// classifyRuntimeError returns a terminal error for source errors that leave
// the watch unable to continue, or nil when the watch can keep running.
func classifyRuntimeError(root string, err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		return nil
	}
	if isLimitError(err) {
		return errs.WatchLimitExceeded(root, err)
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Severity == errs.SeverityFatal {
		return err
	}
	return nil
}
