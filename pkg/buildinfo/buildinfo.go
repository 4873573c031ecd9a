// Package buildinfo carries version identifiers stamped at build time.
//
// Set via -ldflags, e.g.:
//
//	go build -ldflags "-X github.com/skyfare/skyfare/pkg/buildinfo.Version=v1.2.3 \
//	  -X github.com/skyfare/skyfare/pkg/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/skyfare/skyfare/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
