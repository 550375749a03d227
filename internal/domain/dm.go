package domain

import "strings"

const dmNamePrefix = "dm:"

// DMRoomName returns the canonical room name for a DM pair: dm:a|b with the
// participants ordered lexicographically.
func DMRoomName(sender, recipient string) string {
	a, b := sender, recipient
	if b < a {
		a, b = b, a
	}
	return dmNamePrefix + a + "|" + b
}

// ParseDMName extracts the participants from a canonical DM room name.
func ParseDMName(name string) (a, b string, ok bool) {
	rest, found := strings.CutPrefix(name, dmNamePrefix)
	if !found {
		return "", "", false
	}
	a, b, found = strings.Cut(rest, "|")
	if !found || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}
