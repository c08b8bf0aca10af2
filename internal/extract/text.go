// Package extract normalises bill text and pulls out the provisions the
// validator shows to the model.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// TruncationMarker ends text cut to a character budget
const TruncationMarker = "\n[... text truncated ...]"

var (
	looksLikeHTML = regexp.MustCompile(`(?i)<(html|body|p|div|br|span|table|section|pre)\b`)
	spaceRun      = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// BillText turns raw bill text, plain or HTML, into plain text with
// paragraph breaks kept.
func BillText(raw string) string {
	if looksLikeHTML.MatchString(raw) {
		if doc, err := html.Parse(strings.NewReader(raw)); err == nil {
			raw = visibleText(doc)
		}
	}
	return normalizeSpace(raw)
}

// Truncate cuts text to at most maxChars runes, on a line or word
// boundary when one is close.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxChars])
	if i := strings.LastIndex(cut, "\n"); i > len(cut)*9/10 {
		cut = cut[:i]
	} else if i := strings.LastIndex(cut, " "); i > len(cut)*9/10 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " \n") + TruncationMarker
}

func visibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}

	walk(n)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "section", "article", "pre", "blockquote",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol":
		return true
	}
	return false
}

func normalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRun.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// splitSentences splits text into sentences of useful length
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if n := utf8.RuneCountInString(sentence); n >= 30 && n <= 800 {
			sentences = append(sentences, sentence)
		}
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			flush()
			continue
		}
		if r == '\n' {
			r = ' '
		}
		current.WriteRune(r)

		if r == '.' || r == ';' || r == '!' || r == '?' {
			// abbreviations like "Sec. 4" and "U.S.C." are followed by a non-space
			if i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\n') && !isAbbreviation(current.String()) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

var (
	abbreviations = []string{"sec.", "secs.", "no.", "u.s.", "u.s.c.", "subd.", "par.", "art.", "ch.", "inc.", "co.", "corp."}
	headingOnly   = regexp.MustCompile(`(?i)^(section|sec\.|article|chapter)\s+[0-9a-z.]+$`)
)

// isAbbreviation reports whether a period ending s does not end a sentence
func isAbbreviation(s string) bool {
	if headingOnly.MatchString(strings.TrimSpace(s)) {
		return true
	}
	lower := strings.ToLower(s)
	for _, a := range abbreviations {
		if strings.HasSuffix(lower, " "+a) || lower == a {
			return true
		}
	}
	return false
}
