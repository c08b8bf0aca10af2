package repair

import "strings"

type tokenKind int

const (
	tkSpace tokenKind = iota
	tkString
	tkComment
	tkNumber
	tkIdent
	tkPunct
	tkOther
)

// token is a lexical unit of near-JSON text. Joining every token's text
// reproduces the input exactly.
type token struct {
	kind       tokenKind
	text       string
	terminated bool // strings and block comments only
}

func (t token) is(punct string) bool {
	return t.kind == tkPunct && t.text == punct
}

// significant reports whether the token carries structure or a value
func (t token) significant() bool {
	return t.kind != tkSpace && t.kind != tkComment
}

// valueEnd reports whether a value may end with this token
func (t token) valueEnd() bool {
	switch t.kind {
	case tkString, tkNumber, tkIdent:
		return true
	case tkPunct:
		return t.text == "}" || t.text == "]"
	}
	return false
}

// valueStart reports whether a value or key may start with this token
func (t token) valueStart() bool {
	switch t.kind {
	case tkString, tkNumber, tkIdent:
		return true
	case tkPunct:
		return t.text == "{" || t.text == "["
	}
	return false
}

// lex splits text into tokens. Both quote styles open strings, escapes are
// honoured, and unterminated strings or comments run to the end of input.
func lex(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tkSpace, text: s[i:j]})
			i = j

		case c == '"' || c == '\'':
			j := i + 1
			terminated := false
			for j < len(s) {
				if s[j] == '\\' {
					j += 2
					continue
				}
				if s[j] == c {
					j++
					terminated = true
					break
				}
				j++
			}
			if j > len(s) {
				j = len(s)
			}
			toks = append(toks, token{kind: tkString, text: s[i:j], terminated: terminated})
			i = j

		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				j = len(s)
			} else {
				j += i
			}
			toks = append(toks, token{kind: tkComment, text: s[i:j], terminated: true})
			i = j

		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			j := strings.Index(s[i+2:], "*/")
			terminated := j >= 0
			if terminated {
				j = i + 2 + j + 2
			} else {
				j = len(s)
			}
			toks = append(toks, token{kind: tkComment, text: s[i:j], terminated: terminated})
			i = j

		case c == '-' || c == '+' || c == '.' || isDigit(c):
			j := i + 1
			for j < len(s) && isNumberChar(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tkNumber, text: s[i:j]})
			i = j

		case isIdentStart(c):
			j := i + 1
			for j < len(s) && isIdentChar(s[j]) {
				j++
			}
			toks = append(toks, token{kind: tkIdent, text: s[i:j]})
			i = j

		case strings.IndexByte("{}[]:,", c) >= 0:
			toks = append(toks, token{kind: tkPunct, text: s[i : i+1]})
			i++

		default:
			j := i + 1
			for j < len(s) && s[j] >= 0x80 {
				j++
			}
			toks = append(toks, token{kind: tkOther, text: s[i:j]})
			i = j
		}
	}
	return toks
}

func join(toks []token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.text)
	}
	return b.String()
}

// nextSignificant returns the index of the next significant token after i, or -1
func nextSignificant(toks []token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if toks[j].significant() {
			return j
		}
	}
	return -1
}

// prevSignificant returns the index of the previous significant token before i, or -1
func prevSignificant(toks []token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if toks[j].significant() {
			return j
		}
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNumberChar(c byte) bool {
	return isDigit(c) || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
