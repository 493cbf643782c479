package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/cli/go-gh/v2/pkg/markdown"
	"github.com/cli/go-gh/v2/pkg/term"

	"github.com/randymized/async-multipart-iterator/internal/stream"
)

// Options controls how parts are printed.
type Options struct {
	PlainText  bool
	RawHeaders bool
	Wrap       int
}

type TerminalRenderer struct {
	markdown   *glamour.TermRenderer
	plainText  bool
	rawHeaders bool
	out        io.Writer

	header [][]byte
	buffer bytes.Buffer
	parts  int
}

func NewTerminalRenderer(out io.Writer, opts Options) *TerminalRenderer {
	var md *glamour.TermRenderer
	if !opts.PlainText {
		md, _ = glamour.NewTermRenderer(
			markdown.WithWrap(opts.Wrap),
			glamour.WithAutoStyle(),
		)
	}

	return &TerminalRenderer{
		markdown:   md,
		plainText:  opts.PlainText || md == nil,
		rawHeaders: opts.RawHeaders,
		out:        out,
	}
}

// TerminalWrap limits wrap to the width of the terminal stdout is attached
// to, if any.
func TerminalWrap(wrap int) int {
	t := term.FromEnv()
	if !t.IsTerminalOutput() {
		return wrap
	}
	width, _, err := t.Size()
	if err != nil || width <= 0 {
		return wrap
	}
	return min(wrap, width)
}

// Parts returns the number of parts rendered so far.
func (t *TerminalRenderer) Parts() int {
	return t.parts
}

func (t *TerminalRenderer) Render(chunks <-chan stream.Chunk) error {
	for chunk := range chunks {
		if chunk.Error != nil {
			return fmt.Errorf("stream error: %w", chunk.Error)
		}

		switch {
		case chunk.IsHeader():
			if err := t.startPart(chunk); err != nil {
				return err
			}
		case chunk.Done:
			if err := t.endPart(); err != nil {
				return err
			}
		case t.plainText:
			if _, err := t.out.Write(chunk.Content); err != nil {
				return err
			}
		default:
			t.buffer.Write(chunk.Content)
		}
	}
	return nil
}

func (t *TerminalRenderer) headerLines(chunk stream.Chunk) []string {
	if !t.rawHeaders {
		return chunk.Header
	}
	lines := make([]string, len(chunk.RawHeader))
	for i, raw := range chunk.RawHeader {
		lines[i] = fmt.Sprintf("%q", raw)
	}
	return lines
}

func (t *TerminalRenderer) startPart(chunk stream.Chunk) error {
	t.parts++
	t.buffer.Reset()
	lines := t.headerLines(chunk)

	if !t.plainText {
		t.header = t.header[:0]
		for _, line := range lines {
			t.header = append(t.header, []byte(line))
		}
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- part %d ---\n", chunk.Part)
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(t.out, b.String())
	return err
}

func (t *TerminalRenderer) endPart() error {
	if t.plainText {
		_, err := io.WriteString(t.out, "\n")
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Part %d\n\n", t.parts)
	if len(t.header) == 0 {
		b.WriteString("_no header lines_\n\n")
	}
	for _, line := range t.header {
		fmt.Fprintf(&b, "- `%s`\n", bytes.ReplaceAll(line, []byte("`"), []byte("'")))
	}
	if len(t.header) > 0 {
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d bytes\n\n", t.buffer.Len())
	if t.buffer.Len() > 0 {
		fence := codeFence(t.buffer.Bytes())
		fmt.Fprintf(&b, "%s\n%s\n%s\n", fence, bytes.TrimRight(t.buffer.Bytes(), "\r\n"), fence)
	}

	mdContent, err := t.markdown.Render(b.String())
	if err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	_, err = fmt.Fprintln(t.out, strings.TrimSpace(mdContent))
	return err
}

// codeFence returns a backtick fence longer than any backtick run in body.
func codeFence(body []byte) string {
	longest, run := 0, 0
	for _, c := range body {
		if c == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}
