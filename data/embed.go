// Package data holds files compiled into the wall binary.
package data

import "embed"

var (
	//go:embed wall.yaml
	Config embed.FS
)

// DefaultConfigName is the embedded default configuration.
const DefaultConfigName = "wall.yaml"
