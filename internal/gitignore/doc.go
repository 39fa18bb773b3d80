// Package gitignore matches root-relative paths against .gitignore rules.
//
// Rules follow git's syntax: blank lines and comments are skipped, a
// leading "!" re-includes, a trailing "/" restricts a rule to directories,
// and a rule containing a slash is anchored to the directory of the file
// that declared it. The last matching rule wins, and nothing below an
// ignored directory can be re-included.
package gitignore
