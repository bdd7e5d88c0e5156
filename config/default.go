package config

import _ "embed"

// Default holds the built-in configuration every loaded config starts from.
//
//go:embed conf.default.yaml
var Default []byte
