// Package macdesigns embeds the single-page portfolio client.
package macdesigns

import "embed"

//go:embed static
var StaticFS embed.FS
