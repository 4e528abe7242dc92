// Package schemas embeds the JSON Schemas for the observer stream and the
// source record export format.
package schemas

import "embed"

//go:embed *.schema.json
var FS embed.FS
