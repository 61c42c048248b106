package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nabbar/s3sh/command"
	"github.com/nabbar/s3sh/completion"
	"github.com/nabbar/s3sh/console"
)

// errInterrupted is returned by lineReader.readLine when Ctrl-C lands mid
// line: the caller reprompts rather than treating it as EOF.
var errInterrupted = errors.New("interrupted")

// lineReader is the minimal raw-mode input reader that stands in for the
// line editor spec.md §1 puts out of scope (history, cursor movement,
// kill-ring, etc.). It exists so TAB has somewhere to land: without raw
// mode, the terminal driver itself consumes every keystroke line-buffered
// and a TAB byte never reaches this process, which is why a plain
// bufio.Scanner loop can never drive the completion cache (C9). Appending
// and Backspace (dropping the last rune) are the only edit operations;
// there is no cursor, only ever the end of the buffer, so completion
// always fires on the last typed token.
type lineReader struct {
	comp *completion.Cache
	disp *command.Dispatcher
	fd   int
}

func newLineReader(comp *completion.Cache, disp *command.Dispatcher) *lineReader {
	return &lineReader{comp: comp, disp: disp, fd: int(os.Stdin.Fd())}
}

// readLine prints prompt, switches the terminal to raw mode for the
// duration of one line, and returns the assembled buffer on Enter. TAB
// calls comp.Suggest over the line typed so far (§4.9): a single match
// completes the final path segment in place; more than one prints the
// candidates below the current line and reprints the prompt.
func (r *lineReader) readLine(ctx context.Context, prompt string) (string, error) {
	oldState, err := term.MakeRaw(r.fd)
	if err != nil {
		return "", err
	}
	defer func() { _ = term.Restore(r.fd, oldState) }()

	console.ColorPrompt.Printf("%s", prompt)

	var (
		buf [1]byte
		out []byte
	)
	for {
		n, err := os.Stdin.Read(buf[:])
		if n == 0 || err != nil {
			if err != nil {
				return "", err
			}
			continue
		}

		switch b := buf[0]; {
		case b == '\r' || b == '\n':
			fmt.Fprint(os.Stdout, "\r\n")
			return string(out), nil
		case b == 3: // Ctrl-C
			fmt.Fprint(os.Stdout, "\r\n")
			return "", errInterrupted
		case b == 4: // Ctrl-D
			if len(out) == 0 {
				return "", io.EOF
			}
		case b == 127 || b == 8: // Backspace/DEL
			if len(out) > 0 {
				out = out[:len(out)-lastRuneSize(out)]
				fmt.Fprint(os.Stdout, "\b \b")
			}
		case b == '\t':
			out = r.complete(ctx, prompt, out)
		case b >= 0x20 && b != 0x7f:
			out = append(out, b)
			_, _ = os.Stdout.Write(buf[:])
		}
	}
}

// complete drives the completion cache with the buffer typed so far and
// returns the (possibly rewritten) buffer. A single suggestion is applied
// silently in place; multiple are listed on their own line, per the
// conventional shell TAB behavior.
func (r *lineReader) complete(ctx context.Context, prompt string, out []byte) []byte {
	line := string(out)
	suggestions, err := r.comp.Suggest(ctx, r.disp.Current(), line, len(line))
	if err != nil || len(suggestions) == 0 {
		return out
	}

	if len(suggestions) == 1 {
		line = applyCompletion(line, suggestions[0])
		fmt.Fprint(os.Stdout, "\r\x1b[2K")
		console.ColorPrompt.Printf("%s", prompt)
		fmt.Fprint(os.Stdout, line)
		return []byte(line)
	}

	fmt.Fprint(os.Stdout, "\r\n"+strings.Join(suggestions, "  ")+"\r\n")
	console.ColorPrompt.Printf("%s", prompt)
	fmt.Fprint(os.Stdout, line)
	return out
}

// applyCompletion replaces the final "/"-delimited segment of line's last
// whitespace-delimited token with suggestion, mirroring completion's own
// (unexported) lastToken/splitPartialPath split without importing it —
// the two packages complete different things (a whole line here, a line
// up to the cursor there) for the same reason command/ duplicates rather
// than imports completion's tokenizer.
func applyCompletion(line, suggestion string) string {
	head := 0
	if idx := strings.LastIndexAny(line, " \t"); idx >= 0 {
		head = idx + 1
	}
	token := line[head:]

	parent := ""
	if idx := strings.LastIndex(token, "/"); idx >= 0 {
		parent = token[:idx+1]
	}

	return line[:head] + parent + suggestion
}

// lastRuneSize returns the byte width of the last UTF-8 rune in b, so
// backspace erases one character rather than one byte of a multi-byte
// rune.
func lastRuneSize(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-4; i-- {
		if b[i]&0xC0 != 0x80 {
			return len(b) - i
		}
	}
	return 1
}
