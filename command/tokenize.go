package command

import "strings"

// splitQuoted tokenizes a full input line on whitespace, treating a '"' or
// '\'' delimited run as a single token with the quotes stripped (§4.2
// "Quote and escape handling is performed by the tokenizer"). Duplicated
// from completion's tokenizer rather than shared: the two packages tokenize
// different things (a complete line here, a line-up-to-cursor there) and
// neither should import the other just to reuse a dozen lines.
func splitQuoted(line string) []string {
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

	for i := 0; i < len(line); i++ {
		ch := line[i]

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
		case ch == ' ' || ch == '\t':
			flush()
		default:
			inTok = true
			cur.WriteByte(ch)
		}
	}
	flush()

	return out
}
