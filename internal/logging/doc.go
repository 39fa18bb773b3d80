// Package logging sets up structured JSON logging for treewatch.
//
// The CLI logs to stderr and, with --debug, also to a rotating file under
// ~/.treewatch/logs/. The daemon runs detached and logs to its own file only.
// The Viewer reads those files back for the `treewatch logs` command.
package logging
