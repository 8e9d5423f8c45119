package main

import (
	"regexp"
	"strconv"
	"strings"
)

// versionNoiseRe strips anything that is not a digit or a dot from the ends of
// a version string, so "v13.0.2" and "1.2.3-rc" both parse.
var versionNoiseRe = regexp.MustCompile(`^[^\d.]*|[^\d.]*$`)

// parseVersionParts splits a version string into its numeric components.
// A string that fails to parse yields nil, which compares as all-zero and is
// therefore older than any real version.
func parseVersionParts(s string) []int {
	s = versionNoiseRe.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" {
		return nil
	}
	segs := strings.Split(s, ".")
	parts := make([]int, 0, len(segs))
	for _, seg := range segs {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil
		}
		parts = append(parts, n)
	}
	return parts
}

// compareVersions orders two dotted version strings.
// Returns -1 if a is older than b, 0 if equal, 1 if newer. A shorter version
// is padded with zeros, so "2.0" equals "2.0.0".
func compareVersions(a, b string) int {
	ap := parseVersionParts(a)
	bp := parseVersionParts(b)

	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(ap) {
			av = ap[i]
		}
		if i < len(bp) {
			bv = bp[i]
		}
		if d := cmpInt(av, bv); d != 0 {
			return d
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
