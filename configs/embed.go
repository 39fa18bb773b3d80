// Package configs provides embedded configuration templates for treewatch.
//
// Templates are embedded at build time so every distribution carries them.
// They are used by:
//   - `treewatch config init` for the user config at ~/.config/treewatch/config.yaml
//   - `treewatch config init --project` for .treewatch.yaml in the working directory
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config
//  3. Project config (.treewatch.yaml)
//  4. Environment variables (TREEWATCH_*)
package configs

import _ "embed"

// UserConfigTemplate is the template for user/machine-level configuration:
// daemon paths, journal and logging.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is the template for a project's .treewatch.yaml:
// which files count as changes and which paths to ignore.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
