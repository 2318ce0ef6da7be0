package util

import (
	"strings"
)

// StringInSlice returns true if str is in list.
func StringInSlice(str string, list []string) bool {
	for _, v := range list {
		if v == str {
			return true
		}
	}
	return false
}

// FirstWord returns the first space-separated word of s.
func FirstWord(s string) string {
	return strings.SplitN(strings.TrimSpace(s), " ", 2)[0]
}
