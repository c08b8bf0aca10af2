package repair

import "strings"

var literalNames = []string{"true", "false", "null"}

// balance closes whatever a truncated document left open. It scans tokens
// (so string and escape state is respected), closes an unterminated string,
// drops stray closers, repairs the tail (dangling comma, dangling key,
// dangling colon, half-written number or literal) and appends the closers
// implied by the open stack.
func balance(s string) string {
	toks := lex(s)
	out := make([]token, 0, len(toks)+4)
	var stack []string

	for _, t := range toks {
		if t.kind == tkPunct {
			switch t.text {
			case "{", "[":
				stack = append(stack, t.text)
			case "}", "]":
				opener := "{"
				if t.text == "]" {
					opener = "["
				}
				idx := lastIndexOf(stack, opener)
				if idx < 0 {
					continue
				}
				for len(stack)-1 > idx {
					out = append(out, token{kind: tkPunct, text: closerFor(stack[len(stack)-1])})
					stack = stack[:len(stack)-1]
				}
				stack = stack[:len(stack)-1]
			}
		}
		out = append(out, t)
	}

	if n := len(out); n > 0 && out[n-1].kind == tkString && !out[n-1].terminated {
		out[n-1] = closeString(out[n-1])
	}
	if n := len(out); n > 0 && out[n-1].kind == tkComment && !out[n-1].terminated {
		out = out[:n-1]
	}

	if len(stack) == 0 {
		return join(out)
	}

	out = repairTail(out, stack[len(stack)-1])

	var b strings.Builder
	b.WriteString(strings.TrimRight(join(out), " \t\r\n"))
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString(closerFor(stack[i]))
	}
	return b.String()
}

// repairTail fixes the last significant tokens so the closers can follow
func repairTail(out []token, top string) []token {
	for guard := 0; guard < 8; guard++ {
		last := prevSignificant(out, len(out))
		if last < 0 {
			return out
		}
		t := out[last]
		prev := prevSignificant(out, last)

		switch {
		case t.is(","):
			out = out[:last]
			continue

		case t.is(":"):
			return append(out[:last+1], token{kind: tkIdent, text: " null"})

		case top == "{" && (t.kind == tkString || t.kind == tkIdent || t.kind == tkNumber) &&
			(prev < 0 || out[prev].is("{") || out[prev].is(",")):
			// a key with no value
			out = out[:last]
			continue

		case t.kind == tkNumber:
			trimmed := strings.TrimRight(t.text, ".eE+-")
			if trimmed == "" {
				out[last] = token{kind: tkIdent, text: "null"}
			} else {
				out[last].text = trimmed
			}
			return out[:last+1]

		case t.kind == tkIdent:
			out[last].text = completeLiteral(t.text)
			return out[:last+1]
		}
		return out[:last+1]
	}
	return out
}

// completeLiteral finishes a truncated true/false/null, or nulls anything else
func completeLiteral(ident string) string {
	for _, lit := range literalNames {
		if ident == lit {
			return ident
		}
		if strings.HasPrefix(lit, ident) {
			return lit
		}
	}
	if _, ok := literalReplacements[ident]; ok {
		return ident
	}
	return "null"
}

// closeString terminates a string literal cut off mid-way
func closeString(t token) token {
	text := t.text
	// a dangling escape would swallow the closing quote
	trailing := len(text) - len(strings.TrimRight(text, `\`))
	if trailing%2 == 1 {
		text = text[:len(text)-1]
	}
	t.text = text + text[:1]
	t.terminated = true
	return t
}

func closerFor(opener string) string {
	if opener == "[" {
		return "]"
	}
	return "}"
}

func lastIndexOf(stack []string, v string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == v {
			return i
		}
	}
	return -1
}
