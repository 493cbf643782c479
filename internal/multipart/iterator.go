// Package multipart decodes a chunked multipart document into parts with
// text headers and lazily read bodies.
//
// A document is decoded in one forward pass: bytes are pulled from the
// source only when a header or body read needs them, and no more than one
// boundary's worth of input is held back between chunks.
//
//	it, err := multipart.NewIterator("separator", source.FromReader(r, 4096))
//	if err != nil {
//		return err
//	}
//	for part, err := range it.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(part.Header)
//		io.Copy(os.Stdout, part.Body)
//	}
package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/randymized/async-multipart-iterator/internal/boundary"
	"github.com/randymized/async-multipart-iterator/internal/parts"
	"github.com/randymized/async-multipart-iterator/internal/source"
)

var (
	// ErrBoundaryNotFound is returned when the input ends before the
	// terminal boundary.
	ErrBoundaryNotFound = parts.ErrBoundaryNotFound
	// ErrEmptyBoundary is returned by NewIterator for an empty token.
	ErrEmptyBoundary = boundary.ErrEmptyBoundary
)

// Option configures an Iterator.
type Option func(*Iterator)

// WithEncoding sets the character encoding of header lines. The default is
// UTF-8, with invalid sequences replaced by U+FFFD.
func WithEncoding(enc encoding.Encoding) Option {
	return func(it *Iterator) {
		it.enc = enc
	}
}

// LookupCharset returns the encoding registered under a charset label such
// as "utf-8", "latin1" or "windows-1252".
func LookupCharset(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	return enc, nil
}

// Part is one decoded section of a multipart document.
type Part struct {
	// Header holds the header lines in document order, decoded to text.
	Header []string
	// RawHeader holds the same lines as they appeared in the input.
	RawHeader [][]byte
	// Body delivers the content after the header block.
	Body *Body
}

// Iterator yields the parts of a document in order.
type Iterator struct {
	demux *parts.Demuxer
	enc   encoding.Encoding
	err   error
}

// NewIterator returns an Iterator over the document read from src, whose
// parts are delimited by token. Nothing is read until Next is called.
func NewIterator(token string, src source.Source, opts ...Option) (*Iterator, error) {
	sc, err := boundary.NewScanner(token, src)
	if err != nil {
		return nil, err
	}
	it := &Iterator{
		demux: parts.NewDemuxer(sc),
		enc:   unicode.UTF8,
	}
	for _, opt := range opts {
		opt(it)
	}
	return it, nil
}

// Next returns the next part, with its header already read. It returns
// io.EOF after the last part. Any unread content of the previous part's
// body is skipped.
func (it *Iterator) Next(ctx context.Context) (*Part, error) {
	if it.err != nil {
		return nil, it.err
	}
	p, err := it.demux.NextPart(ctx)
	if err != nil {
		it.err = err
		return nil, err
	}
	raw, err := p.Header(ctx)
	if err != nil {
		it.err = err
		return nil, err
	}
	header, err := it.decode(raw)
	if err != nil {
		it.err = err
		return nil, err
	}
	return &Part{
		Header:    header,
		RawHeader: raw,
		Body:      &Body{ctx: ctx, part: p},
	}, nil
}

func (it *Iterator) decode(raw [][]byte) ([]string, error) {
	dec := it.enc.NewDecoder()
	header := make([]string, len(raw))
	for i, line := range raw {
		text, err := dec.Bytes(line)
		if err != nil {
			return nil, fmt.Errorf("failed to decode header line %d: %w", i+1, err)
		}
		header[i] = string(text)
	}
	return header, nil
}

// All returns a sequence over the remaining parts. The sequence stops after
// the last part, or after yielding the first error.
func (it *Iterator) All(ctx context.Context) iter.Seq2[*Part, error] {
	return func(yield func(*Part, error) bool) {
		for {
			p, err := it.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// Body is the content of a part. It must be consumed before the next part
// is requested; Iterator.Next skips whatever is left.
type Body struct {
	ctx  context.Context
	part *parts.Part
	buf  []byte
}

// Next returns the next chunk of the body, or io.EOF at its end. The chunk
// may alias the caller's input and must not be modified.
func (b *Body) Next(ctx context.Context) ([]byte, error) {
	if len(b.buf) > 0 {
		chunk := b.buf
		b.buf = nil
		return chunk, nil
	}
	return b.part.Next(ctx)
}

// Read implements io.Reader using the context the part was produced with.
func (b *Body) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(b.buf) == 0 {
		chunk, err := b.part.Next(b.ctx)
		if err != nil {
			return 0, err
		}
		b.buf = chunk
	}
	n := copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Chunks returns a sequence over the remaining body chunks. A failure is
// yielded as the final element.
func (b *Body) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			chunk, err := b.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Bytes reads the rest of the body into memory.
func (b *Body) Bytes() ([]byte, error) {
	return io.ReadAll(b)
}

// Text reads the rest of the body into memory and returns it as a string.
func (b *Body) Text() (string, error) {
	data, err := b.Bytes()
	return string(data), err
}
