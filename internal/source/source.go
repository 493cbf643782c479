// Package source adapts the different shapes of caller input into a uniform
// sequence of byte chunks.
//
// Chunks handed out by a Source are never modified by their consumers, so
// the adapters return the caller's buffers without copying them.
package source

import (
	"context"
	"errors"
	"io"
)

// Source yields the chunks of a document in order. Next returns io.EOF once
// every chunk has been delivered.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// Func adapts an ordinary function to the Source interface.
type Func func(ctx context.Context) ([]byte, error)

func (f Func) Next(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

type sliceSource struct {
	chunks [][]byte
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

// FromBytes returns a Source that yields buf as its only chunk.
func FromBytes(buf []byte) Source {
	return &sliceSource{chunks: [][]byte{buf}}
}

// FromString returns a Source that yields s as its only chunk.
func FromString(s string) Source {
	return FromBytes([]byte(s))
}

// FromChunks returns a Source that yields each element of chunks in turn.
func FromChunks(chunks ...[]byte) Source {
	return &sliceSource{chunks: chunks}
}

// FromStrings returns a Source that yields each string as a chunk.
func FromStrings(chunks ...string) Source {
	bufs := make([][]byte, len(chunks))
	for i, s := range chunks {
		bufs[i] = []byte(s)
	}
	return &sliceSource{chunks: bufs}
}

type readerSource struct {
	r    io.Reader
	size int
	err  error
}

// FromReader returns a Source that reads r in chunks of at most size bytes.
// Every chunk is a freshly allocated buffer.
func FromReader(r io.Reader, size int) Source {
	if size <= 0 {
		size = 4096
	}
	return &readerSource{r: r, size: size}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, error) {
	for s.err == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf := make([]byte, s.size)
		n, err := s.r.Read(buf)
		s.err = err
		if n > 0 {
			return buf[:n], nil
		}
	}
	return nil, s.err
}

// Chunk is an element of a channel-backed source. A non-nil Err ends the
// source with that error.
type Chunk struct {
	Data []byte
	Err  error
}

type chanSource struct {
	ch  <-chan Chunk
	err error
}

// FromChannel returns a Source fed by ch. The source ends with io.EOF when
// ch is closed.
func FromChannel(ch <-chan Chunk) Source {
	return &chanSource{ch: ch}
}

func (s *chanSource) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case c, ok := <-s.ch:
		switch {
		case !ok:
			s.err = io.EOF
		case c.Err != nil:
			s.err = c.Err
		default:
			return c.Data, nil
		}
		return nil, s.err
	}
}

// Drain consumes src until it is exhausted and discards the chunks. It
// returns nil when the source ended with io.EOF.
func Drain(ctx context.Context, src Source) error {
	for {
		if _, err := src.Next(ctx); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Pump reads r in chunks of at most size bytes and sends them on ch until
// r is exhausted, then closes ch. A read error is sent as the final chunk
// and returned.
func Pump(ctx context.Context, r io.Reader, size int, ch chan<- Chunk) error {
	defer close(ch)
	src := FromReader(r, size)
	done := ctx.Done()
	for {
		data, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		c := Chunk{Data: data, Err: err}
		select {
		case <-done:
			return ctx.Err()
		case ch <- c:
		}
		if err != nil {
			return err
		}
	}
}
