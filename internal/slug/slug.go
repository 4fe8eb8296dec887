// Package slug derives URL-safe identifiers from display names.
package slug

import (
	"regexp"
	"strings"
)

// Untitled is returned for names that reduce to nothing.
const Untitled = "untitled"

var (
	punctRe     = regexp.MustCompile(`['"“”‘’` + "`" + `()\[\]{}<>!?,:;@#$%^&*+=|\\/~]`)
	spaceRe     = regexp.MustCompile(`[\s_]+`)
	disallowRe  = regexp.MustCompile(`[^a-z0-9.\-]`)
	multiDashRe = regexp.MustCompile(`-{2,}`)
)

// Make returns the slug for name. The result only contains [a-z0-9.-],
// never starts or ends with a hyphen and is never empty.
func Make(name string) string {
	s := strings.ToLower(name)
	s = punctRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, "-")
	s = disallowRe.ReplaceAllString(s, "")
	s = multiDashRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Untitled
	}
	return s
}
