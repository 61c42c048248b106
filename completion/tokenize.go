package completion

import "strings"

// lastToken splits head (the input buffer up to the cursor) into the
// command word and the partial path token currently being typed. If head
// ends in whitespace there is no partial token yet (the caller is about
// to start a fresh argument), so partial is "".
//
// Quoting is honored (§4.8 "quoted segments") so a partial token may
// itself contain a space: `cd "my bucket/lo` completes against
// `my bucket/lo`, quote stripped.
func lastToken(head string) (cmd, partial string) {
	fields := splitQuoted(head)
	if len(fields) == 0 {
		return "", ""
	}

	cmd = fields[0]

	if len(head) > 0 && isSpace(head[len(head)-1]) {
		return cmd, ""
	}
	return cmd, fields[len(fields)-1]
}

// splitQuoted tokenizes on whitespace, treating a '"' or '\'' delimited
// run as a single token with the quotes stripped. An unterminated quote
// at the end of head (the common case mid-completion) is tolerated: the
// token runs to the end of the string.
func splitQuoted(head string) []string {
	var (
		out   []string
		cur   strings.Builder
		inTok bool
		quote byte
	)

	flush := func() {
		if inTok {
			out = append(out, cur.String())
			cur.Reset()
			inTok = false
		}
	}

	for i := 0; i < len(head); i++ {
		ch := head[i]

		if quote != 0 {
			if ch == quote {
				quote = 0
				continue
			}
			cur.WriteByte(ch)
			continue
		}

		switch {
		case ch == '"' || ch == '\'':
			quote = ch
			inTok = true
		case isSpace(ch):
			flush()
		default:
			inTok = true
			cur.WriteByte(ch)
		}
	}
	flush()

	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}

// splitPartialPath splits partial at its last unquoted "/" into the
// parent path text (resolved relative to the current node, or absolute if
// it starts with "/") and the prefix the final segment must match.
func splitPartialPath(partial string) (parentText, prefix string) {
	idx := strings.LastIndex(partial, "/")
	if idx < 0 {
		return "", partial
	}
	return partial[:idx+1], partial[idx+1:]
}
