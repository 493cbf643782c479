package boundary

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kr/pretty"

	"github.com/randymized/async-multipart-iterator/internal/source"
)

const (
	eop = "<EOP>"
	eod = "<EOD>"
)

// collect drains sc and renders the events as strings, joining adjacent
// data segments so that results do not depend on chunking.
func collect(t *testing.T, sc *Scanner) ([]string, error) {
	t.Helper()
	ctx := context.Background()
	var out []string
	var data strings.Builder
	flush := func() {
		if data.Len() > 0 {
			out = append(out, data.String())
			data.Reset()
		}
	}
	for {
		ev, err := sc.Next(ctx)
		if err != nil {
			flush()
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		switch ev.Signal {
		case None:
			if len(ev.Data) == 0 {
				t.Fatalf("empty data event")
			}
			data.Write(ev.Data)
		case EndOfPart:
			flush()
			out = append(out, eop)
		case EndOfDocument:
			flush()
			out = append(out, eod)
		}
	}
}

func byteChunks(s string, size int) []string {
	var chunks []string
	for i := 0; i < len(s); i += size {
		chunks = append(chunks, s[i:min(i+size, len(s))])
	}
	return chunks
}

func TestScanner(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		chunks []string
		want   []string
	}{
		{
			name:   "single part",
			token:  "b",
			chunks: []string{"\r\n--b\r\nhello\r\n--b--\r\n"},
			want:   []string{eop, "hello", eop, eod},
		},
		{
			name:   "leading boundary without crlf",
			token:  "b",
			chunks: []string{"--b\r\nhello\r\n--b--"},
			want:   []string{eop, "hello", eop, eod},
		},
		{
			name:   "leading boundary split across chunks",
			token:  "bound",
			chunks: []string{"-", "-bo", "und\r", "\nhello\r\n--bound--"},
			want:   []string{eop, "hello", eop, eod},
		},
		{
			name:   "prologue is discarded",
			token:  "b",
			chunks: []string{"preamble text\r\nmore\r\n--b\r\nx\r\n--b--"},
			want:   []string{eop, "x", eop, eod},
		},
		{
			name:   "epilogue is discarded",
			token:  "b",
			chunks: []string{"--b\r\nx\r\n--b--\r\nepilogue\r\n--b\r\ny", "more epilogue"},
			want:   []string{eop, "x", eop, eod},
		},
		{
			name:   "multiple boundaries in one chunk",
			token:  "b",
			chunks: []string{"--b\r\none\r\n--b\r\ntwo\r\n--b\r\nthree\r\n--b--"},
			want:   []string{eop, "one", eop, "two", eop, "three", eop, eod},
		},
		{
			name:   "boundary exactly at chunk end",
			token:  "b",
			chunks: []string{"--b\r\none\r\n--b", "\r\ntwo\r\n--b", "--"},
			want:   []string{eop, "one", eop, "two", eop, eod},
		},
		{
			name:   "split inside leading crlf",
			token:  "sep",
			chunks: []string{"--sep\r\none\r", "\n--sep\r\ntwo\r", "\n--sep--"},
			want:   []string{eop, "one", eop, "two", eop, eod},
		},
		{
			name:   "split inside token",
			token:  "separator",
			chunks: []string{"--separator\r\none\r\n--sepa", "rator\r\ntwo\r\n--separ", "ator--"},
			want:   []string{eop, "one", eop, "two", eop, eod},
		},
		{
			name:   "split inside trailing crlf and dashes",
			token:  "sep",
			chunks: []string{"--sep\r\none\r\n--sep\r", "\ntwo\r\n--sep-", "-"},
			want:   []string{eop, "one", eop, "two", eop, eod},
		},
		{
			name:   "delimiter without valid tail is content",
			token:  "sep",
			chunks: []string{"--sep\r\na\r\n--sepX\r\nb\r\n--sep--"},
			want:   []string{eop, "a\r\n--sepX\r\nb", eop, eod},
		},
		{
			name:   "near miss in prologue",
			token:  "sep",
			chunks: []string{"--sepX\r\n--sep\r\nbody\r\n--sep--"},
			want:   []string{eop, "body", eop, eod},
		},
		{
			name:   "empty chunks",
			token:  "b",
			chunks: []string{"", "--b\r\n", "", "x", "", "\r\n--b--", ""},
			want:   []string{eop, "x", eop, eod},
		},
		{
			name:   "no boundary",
			token:  "b",
			chunks: []string{"just some text\r\nwithout any delimiter"},
			want:   nil,
		},
		{
			name:   "empty document",
			token:  "b",
			chunks: nil,
			want:   nil,
		},
		{
			name:   "missing terminal boundary",
			token:  "b",
			chunks: []string{"--b\r\nunterminated"},
			want:   []string{eop, "untermin"},
		},
		{
			name:   "tail never arrives",
			token:  "b",
			chunks: []string{"--b\r\nx\r\n--b", "-"},
			want:   []string{eop, "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := NewScanner(tt.token, source.FromStrings(tt.chunks...))
			if err != nil {
				t.Fatal(err)
			}
			got, err := collect(t, sc)
			if err != nil {
				t.Fatal(err)
			}
			if diff := pretty.Diff(tt.want, got); len(diff) > 0 {
				t.Errorf("events differ: %v\nwant %q\ngot  %q", diff, tt.want, got)
			}
		})
	}
}

func TestScannerChunkSizes(t *testing.T) {
	doc := "ignored\r\n--tok\r\nh: 1\r\n\r\nbody one\r\n--tok\r\n\r\nbody two\r\n--tok--\r\ntrailer"
	want := []string{eop, "h: 1\r\n\r\nbody one", eop, "\r\nbody two", eop, eod}
	for size := 1; size <= len(doc); size++ {
		sc, err := NewScanner("tok", source.FromStrings(byteChunks(doc, size)...))
		if err != nil {
			t.Fatal(err)
		}
		got, err := collect(t, sc)
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if diff := pretty.Diff(want, got); len(diff) > 0 {
			t.Fatalf("size %d: %v", size, diff)
		}
	}
}

func TestScannerRemnantIsBounded(t *testing.T) {
	doc := strings.Repeat("0123456789", 100) + "\r\n--tok\r\n" + strings.Repeat("abcdefghij", 100) + "\r\n--tok--"
	chunks := byteChunks(doc, 7)

	var sc *Scanner
	src := source.Func(func(ctx context.Context) ([]byte, error) {
		if limit := len(sc.delim) + 1; len(sc.buf) > limit {
			t.Fatalf("retained %d bytes, want at most %d", len(sc.buf), limit)
		}
		if len(chunks) == 0 {
			return nil, io.EOF
		}
		c := chunks[0]
		chunks = chunks[1:]
		return []byte(c), nil
	})
	sc, err := NewScanner("tok", src)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := collect(t, sc); err != nil {
		t.Fatal(err)
	}
}

func TestScannerDrainsAfterTerminal(t *testing.T) {
	chunks := []string{"--b\r\nx\r\n--b--", "epilogue 1", "epilogue 2"}
	served := 0
	src := source.Func(func(ctx context.Context) ([]byte, error) {
		if served == len(chunks) {
			return nil, io.EOF
		}
		served++
		return []byte(chunks[served-1]), nil
	})
	sc, err := NewScanner("b", src)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for {
		ev, err := sc.Next(ctx)
		if err != nil {
			t.Fatalf("unexpected error before end of document: %v", err)
		}
		if ev.Signal == EndOfDocument {
			break
		}
	}
	if served != 1 {
		t.Fatalf("read %d chunks before end of document, want 1", served)
	}
	if _, err := sc.Next(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if served != len(chunks) {
		t.Errorf("drained %d chunks, want %d", served, len(chunks))
	}
}

func TestScannerSourceError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	src := source.Func(func(ctx context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return []byte("--b\r\npartial"), nil
		}
		return nil, boom
	})
	sc, err := NewScanner("b", src)
	if err != nil {
		t.Fatal(err)
	}
	_, err = collect(t, sc)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
}

func TestNewScannerEmptyToken(t *testing.T) {
	if _, err := NewScanner("", source.FromString("--\r\n")); !errors.Is(err, ErrEmptyBoundary) {
		t.Fatalf("got %v, want ErrEmptyBoundary", err)
	}
}

func TestSignalString(t *testing.T) {
	for sig, want := range map[Signal]string{
		None:          "data",
		EndOfPart:     "end-of-part",
		EndOfDocument: "end-of-document",
		Signal(9):     "Signal(9)",
	} {
		if got := sig.String(); got != want {
			t.Errorf("%d: got %q, want %q", int(sig), got, want)
		}
	}
}
