// Package keys derives storage object keys and repository identities from
// clone URLs. Every function here is pure: given the same URL and job mode,
// it returns the same keys on every process and every OS (property P7).
package keys

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidRepositoryURL is returned when a clone URL cannot be parsed into
// a RepositoryPathInfo: unparseable, non-HTTP scheme, or fewer than two
// non-empty path segments.
var ErrInvalidRepositoryURL = errors.New("invalid repository url")

var invalidSegmentChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// RepositoryPathInfo is the normalized, path-like identity derived from a
// repository clone URL.
type RepositoryPathInfo struct {
	BaseDomain     string
	FullDomain     string
	Owner          string
	Group          string
	SecondaryGroup string
	RepositoryName string
}

// Hierarchy returns the ordered path components: owner, group?,
// secondaryGroup?, repositoryName.
func (p RepositoryPathInfo) Hierarchy() []string {
	h := []string{p.Owner}
	if p.Group != "" {
		h = append(h, p.Group)
	}
	if p.SecondaryGroup != "" {
		h = append(h, p.SecondaryGroup)
	}
	return append(h, p.RepositoryName)
}

// normalizeSegment lowercases the input, replaces runs of characters outside
// [a-zA-Z0-9._-] with a single '-', and trims leading/trailing '-'. An empty
// result becomes "unknown".
func normalizeSegment(s string) string {
	s = invalidSegmentChars.ReplaceAllString(s, "-")
	s = strings.ToLower(s)
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// baseDomain returns the registered-domain approximation: the last two
// dot-separated host labels, lowercased. Hosts with two or fewer labels use
// all labels.
func baseDomain(host string) string {
	host = strings.ToLower(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// ParseRepositoryURL parses an absolute http/https clone URL into a
// RepositoryPathInfo, or returns ErrInvalidRepositoryURL.
func ParseRepositoryURL(raw string) (RepositoryPathInfo, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return RepositoryPathInfo{}, errors.Wrap(ErrInvalidRepositoryURL, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return RepositoryPathInfo{}, errors.Wrapf(ErrInvalidRepositoryURL, "unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return RepositoryPathInfo{}, errors.Wrap(ErrInvalidRepositoryURL, "missing host")
	}
	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) < 2 {
		return RepositoryPathInfo{}, errors.Wrap(ErrInvalidRepositoryURL, "fewer than two path segments")
	}

	info := RepositoryPathInfo{
		BaseDomain: baseDomain(u.Host),
		FullDomain: strings.ToLower(u.Host),
		Owner:      normalizeSegment(segments[0]),
	}

	last := segments[len(segments)-1]
	last = strings.TrimSuffix(last, ".git")
	info.RepositoryName = normalizeSegment(last)

	if len(segments) >= 3 {
		info.Group = normalizeSegment(segments[1])
	}
	if len(segments) >= 4 {
		middle := segments[2 : len(segments)-1]
		normalized := make([]string, len(middle))
		for i, m := range middle {
			normalized[i] = normalizeSegment(m)
		}
		info.SecondaryGroup = strings.Join(normalized, "-")
	}
	return info, nil
}
