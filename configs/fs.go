// Package configs embeds the prompt files written into a fresh runtime
// directory by `companion init`.
package configs

import "embed"

//go:embed base/*.md avatars/default/avatar.md
var FS embed.FS
