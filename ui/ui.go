// Package ui embeds the operator panel: the index template and static assets.
package ui

import "embed"

//go:generate go run concat.go

// Content корень встроенных файлов (templates/, static/)
//
//go:embed templates static
var Content embed.FS
