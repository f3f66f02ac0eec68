// Package web embeds the browser client served by the gateway.
package web

import "embed"

//go:embed static
var Static embed.FS
