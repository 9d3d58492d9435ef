package fetcher

import (
	"net/url"
	"regexp"
)

const (
	maxHostLen = 64
	maxPathLen = 120
)

var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// SanitizeURL derives a blob-safe file stem from a URL: host (at most 64
// chars), "_", then path and query (at most 120 chars). Distinct URLs with
// long shared prefixes can collide.
func SanitizeURL(raw string) string {
	host, rest := raw, ""
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
		rest = u.EscapedPath()
		if u.RawQuery != "" {
			rest += "?" + u.RawQuery
		}
	}

	host = truncate(reUnsafe.ReplaceAllString(host, "_"), maxHostLen)
	rest = truncate(reUnsafe.ReplaceAllString(rest, "_"), maxPathLen)

	return host + "_" + rest
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
