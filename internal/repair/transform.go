package repair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Each transform is a pure string rewrite. They are applied cumulatively in
// the order listed by Parse.

var fencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*[ \t]*\r?\n?")

// extractFenced returns the body of the first fenced code block, or the
// outermost JSON span when there is no fence. An unclosed fence runs to the
// end of the text.
func extractFenced(s string) string {
	if loc := fencePattern.FindStringIndex(s); loc != nil {
		body := s[loc[1]:]
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		if span := outermostSpan(body); span != "" {
			return span
		}
		return strings.TrimSpace(body)
	}
	if span := outermostSpan(s); span != "" {
		return span
	}
	return s
}

// outermostSpan returns the first complete top-level object or array in s.
// When the structure never closes the span runs to the end of the text.
func outermostSpan(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	depth := 0
	offset := start
	for _, t := range lex(s[start:]) {
		offset += len(t.text)
		if t.kind != tkPunct {
			continue
		}
		switch t.text {
		case "{", "[":
			depth++
		case "}", "]":
			depth--
			if depth == 0 {
				return s[start:offset]
			}
		}
	}
	return strings.TrimSpace(s[start:])
}

// fixCommonIssues quotes bare keys, escapes raw control characters inside
// strings, drops trailing commas and closes unterminated structures.
func fixCommonIssues(s string) string {
	s = escapeControlChars(s)
	s = quoteBareKeys(s)
	s = removeTrailingCommas(s)
	return balance(s)
}

// escapeControlChars escapes raw newlines and tabs inside double-quoted strings
func escapeControlChars(s string) string {
	toks := lex(s)
	for i, t := range toks {
		if t.kind != tkString || t.text[0] != '"' {
			continue
		}
		if strings.ContainsAny(t.text, "\n\r\t") {
			toks[i].text = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(t.text)
		}
	}
	return join(toks)
}

// stripComments removes line and block comments outside strings
func stripComments(s string) string {
	toks := lex(s)
	out := toks[:0]
	for _, t := range toks {
		if t.kind == tkComment {
			out = append(out, token{kind: tkSpace, text: " "})
			continue
		}
		out = append(out, t)
	}
	return join(out)
}

// removeTrailingCommas drops commas that precede a closer, that follow an
// opener, or that repeat
func removeTrailingCommas(s string) string {
	toks := lex(s)
	out := make([]token, 0, len(toks))
	for i, t := range toks {
		if t.is(",") {
			next := nextSignificant(toks, i)
			if next < 0 || toks[next].is("}") || toks[next].is("]") || toks[next].is(",") {
				continue
			}
			prev := prevSignificant(toks, i)
			if prev < 0 || toks[prev].is("{") || toks[prev].is("[") {
				continue
			}
		}
		out = append(out, t)
	}
	return join(out)
}

// insertMissingCommas adds a comma between a value and an adjacent value or
// key, e.g. `{"a": 1 "b": 2}` or `[{} {}]`
func insertMissingCommas(s string) string {
	toks := lex(s)
	out := make([]token, 0, len(toks)+8)
	last := -1
	for _, t := range toks {
		if t.significant() {
			if last >= 0 && out[last].valueEnd() && t.valueStart() {
				tail := append([]token{{kind: tkPunct, text: ","}}, out[last+1:]...)
				out = append(out[:last+1], tail...)
			}
			out = append(out, t)
			last = len(out) - 1
			continue
		}
		out = append(out, t)
	}
	return join(out)
}

// quoteBareKeys wraps identifier and numeric object keys in double quotes
func quoteBareKeys(s string) string {
	toks := lex(s)
	for i, t := range toks {
		if t.kind != tkIdent && t.kind != tkNumber {
			continue
		}
		next := nextSignificant(toks, i)
		if next < 0 || !toks[next].is(":") {
			continue
		}
		prev := prevSignificant(toks, i)
		if prev >= 0 && (toks[prev].is("{") || toks[prev].is(",")) {
			toks[i].text = `"` + t.text + `"`
			toks[i].kind = tkString
			toks[i].terminated = true
		}
	}
	return join(toks)
}

var literalReplacements = map[string]string{
	"undefined": "null",
	"NaN":       "null",
	"Infinity":  "null",
	"None":      "null",
	"True":      "true",
	"False":     "false",
	"TRUE":      "true",
	"FALSE":     "false",
	"NULL":      "null",
}

// normalizeLiterals rewrites JavaScript and Python object-literal syntax into
// JSON: single-quoted strings become double-quoted, and undefined, NaN,
// None, True and False become their JSON equivalents
func normalizeLiterals(s string) string {
	toks := lex(s)
	for i, t := range toks {
		switch t.kind {
		case tkString:
			if t.text[0] == '\'' {
				toks[i].text = requote(t.text)
			}
		case tkIdent:
			if repl, ok := literalReplacements[t.text]; ok {
				toks[i].text = repl
			}
		}
	}
	return join(toks)
}

// requote converts a single-quoted literal to a JSON string literal
func requote(lit string) string {
	body := lit[1:]
	if strings.HasSuffix(body, "'") && !strings.HasSuffix(body, `\'`) {
		body = body[:len(body)-1]
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			if body[i+1] == '\'' {
				b.WriteByte('\'')
			} else {
				b.WriteByte(c)
				b.WriteByte(body[i+1])
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	unescaped := b.String()
	if strings.Contains(unescaped, `"`) {
		unescaped = strings.ReplaceAll(unescaped, `\"`, `"`)
		unescaped = strings.ReplaceAll(unescaped, `"`, `\"`)
	}
	if json.Valid([]byte(`"` + unescaped + `"`)) {
		return `"` + unescaped + `"`
	}
	encoded, _ := json.Marshal(unescaped)
	return string(encoded)
}
