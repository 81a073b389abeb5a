// Package appfs bundles the files the binaries need at runtime: SQL migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_*
var FS embed.FS
