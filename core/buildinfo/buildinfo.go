// Package buildinfo carries version stamps injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/docshelf/core/buildinfo.Version=v0.4.0 \
//	  -X github.com/m3rciful/docshelf/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/docshelf/core/buildinfo.Date=$(date -u +%FT%TZ)" ./cmd/docshelf
package buildinfo

import "strings"

var (
	// Version is the release tag; "dev" for local builds.
	Version = "dev"
	// Commit is the short VCS revision.
	Commit = "local"
	// Date is the RFC3339 build time, empty when unknown.
	Date = ""
)

// String renders a one-line version banner such as "docshelf v0.4.0 (abc1234, 2025-08-30T12:00:00Z)".
func String() string {
	var b strings.Builder
	b.WriteString("docshelf ")
	b.WriteString(Version)
	b.WriteString(" (")
	b.WriteString(Commit)
	if Date != "" {
		b.WriteString(", ")
		b.WriteString(Date)
	}
	b.WriteString(")")
	return b.String()
}
