package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayName picks the friendliest name available for a user.
func DisplayName(firstName, lastName, username string, id int64) string {
	name := strings.TrimSpace(firstName + " " + lastName)
	if name == "" {
		name = username
	}
	if name == "" {
		name = strconv.FormatInt(id, 10)
	}
	return name
}

func Truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}

// FormatSize renders a byte count as B, KB or MB with one decimal.
func FormatSize(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// TruncateHead keeps the last n runes of s, marking the cut with a leading
// ellipsis.
func TruncateHead(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return "…" + string(rs[len(rs)-n+1:])
}
