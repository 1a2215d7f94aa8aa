package dictionary

import "embed"

// builtinFS embeds the built-in dictionaries directory.
//
//go:embed dictionaries/*.yml
var builtinFS embed.FS
