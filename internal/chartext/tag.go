package chartext

import (
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// ParsedTag is the structured form of a chart image tag.
type ParsedTag struct {
	Version  *string
	Branch   *string
	Commit   *string
	Revision *int64
}

// Tags come either as plain semver ("v1.2.3"), or in the CI format
// "<version>-<branch>-<commit>" with an optional numeric build revision
// appended ("0.4.1-main-3e8f21c-17").
var ciTagRe = regexp.MustCompile(`^(.+?)-([A-Za-z0-9_.]+)-([0-9a-f]{7,40})(?:-(\d+))?$`)

// ParseTag extracts version, branch, commit and revision from an image tag.
// Unrecognized tags return an empty ParsedTag; chart ingestion stores
// whatever fields were found.
func ParseTag(tag string) ParsedTag {
	if v, err := semver.NewVersion(tag); err == nil {
		s := v.String()
		return ParsedTag{Version: &s}
	}
	m := ciTagRe.FindStringSubmatch(tag)
	if m == nil {
		return ParsedTag{}
	}
	parsed := ParsedTag{}
	if v, err := semver.NewVersion(m[1]); err == nil {
		s := v.String()
		parsed.Version = &s
	} else {
		parsed.Version = &m[1]
	}
	parsed.Branch = &m[2]
	parsed.Commit = &m[3]
	if m[4] != "" {
		if rev, err := strconv.ParseInt(m[4], 10, 64); err == nil {
			parsed.Revision = &rev
		}
	}
	return parsed
}
