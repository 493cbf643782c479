package stream

import (
	"context"
	"errors"
	"io"

	"github.com/randymized/async-multipart-iterator/internal/multipart"
)

// PartIterator is the pull side of a decoded document. *multipart.Iterator
// implements it.
type PartIterator interface {
	Next(ctx context.Context) (*multipart.Part, error)
}

// Process pulls every part from it and delivers the parts on the chunk
// channel in document order. The channel is closed when the document ends,
// after an error, or when the parser's context is cancelled.
func (p *Parser) Process(it PartIterator) {
	defer close(p.chunks)

	for n := 1; ; n++ {
		part, err := it.Next(p.ctx)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			p.send(Chunk{Part: n, Error: err})
			return
		}

		header := part.Header
		if header == nil {
			header = []string{}
		}
		if !p.send(Chunk{Part: n, Header: header, RawHeader: part.RawHeader}) {
			return
		}

		for {
			content, err := part.Body.Next(p.ctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				p.send(Chunk{Part: n, Error: err})
				return
			}
			if !p.send(Chunk{Part: n, Content: content}) {
				return
			}
		}

		if !p.send(Chunk{Part: n, Done: true}) {
			return
		}
	}
}

// send reports false when the context was cancelled first.
func (p *Parser) send(c Chunk) bool {
	done := p.ctx.Done()
	select {
	case <-done:
		return false
	case p.chunks <- c:
		return true
	}
}
