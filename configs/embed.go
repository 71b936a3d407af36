// Package configs embeds the configuration template written by `baw init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Built-in defaults (config.NewConfig)
//  2. User config ($XDG_CONFIG_HOME/baworkbench/config.yaml)
//  3. Project config (<root>/.config/workbench.yaml)
//  4. Environment variables (BAW_*)
package configs

import _ "embed"

// ProjectConfigTemplate is written to <root>/.config/workbench.yaml by
// `baw init`. Every key is commented out so the defaults apply until edited.
//
//go:embed workbench.example.yaml
var ProjectConfigTemplate string
