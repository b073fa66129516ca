package cmd

import "strings"

// shellQuote minimally quotes one word for a POSIX shell. Common safe
// characters stay unquoted so qm/pct/vzdump invocations remain readable in
// logs; anything else is single-quoted with the standard `'\''` escape for
// embedded single quotes.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		// Safe chars: alnum, - _ . / @ : , + =
		if r >= 'a' && r <= 'z' {
			return false
		}
		if r >= 'A' && r <= 'Z' {
			return false
		}
		if r >= '0' && r <= '9' {
			return false
		}
		switch r {
		case '-', '_', '.', '/', '@', ':', ',', '+', '=':
			return false
		}
		return true
	}) == -1 {
		return s
	}
	// Single-quote, escaping embedded single quotes: ' -> '\''
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// shellJoin renders an argv as one shell command line with each word
// minimally quoted.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}
