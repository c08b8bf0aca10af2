package search

import (
	"regexp"
	"strings"
)

var (
	titleToken = regexp.MustCompile(`(?i)\btitle\s+[0-9]+[a-z]?\b`)
	quoteChars = strings.NewReplacer(`"`, " ", "'", "", "`", " ", "“", " ", "”", " ", "‘", "", "’", "")
)

// Sanitize cleans search phrases: quotes and stray "title N" tokens are
// removed, whitespace collapsed, and empty or repeated phrases dropped.
// Repeats are matched case-insensitively; the first spelling is kept.
func Sanitize(phrases []string) []string {
	seen := make(map[string]bool, len(phrases))
	out := make([]string, 0, len(phrases))

	for _, p := range phrases {
		p = quoteChars.Replace(p)
		p = titleToken.ReplaceAllString(p, " ")
		p = strings.Join(strings.Fields(p), " ")
		p = strings.Trim(p, ",;:.-")
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// Batches splits phrases into chunks of size
func Batches(phrases []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(phrases); start += size {
		out = append(out, phrases[start:min(start+size, len(phrases))])
	}
	return out
}
