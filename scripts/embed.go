// Package scripts bundles the Risor report scripts run by `callsite script`.
package scripts

import "embed"

// FS holds the bundled scripts, for example report/callers.risor.
//
//go:embed report/*.risor
var FS embed.FS
