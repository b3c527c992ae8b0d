// Package modwatch embeds the default configuration written on first run.
package modwatch

import _ "embed"

// DefaultConfigTOML is config.default.toml, generated by cmd/genconfig from
// config.ExampleConfig.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
