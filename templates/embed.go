// Package templates provides the embedded submission file templates.
package templates

import "embed"

// FS contains the sidecar templates written by submission init.
//
//go:embed meta.yaml
var FS embed.FS
