package model

import "strings"

// Roster is the fixed set of children tasks can be attributed to.
type Roster []string

// ParseRoster splits a comma-separated list, trimming and upper-casing names.
func ParseRoster(s string) Roster {
	var r Roster
	for _, name := range strings.Split(s, ",") {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name != "" && !r.Contains(name) {
			r = append(r, name)
		}
	}
	return r
}

func (r Roster) Contains(child string) bool {
	for _, c := range r {
		if c == child {
			return true
		}
	}
	return false
}
