// Package parts groups the events of a boundary scanner into parts and
// splits every part into its header lines and its body.
package parts

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/randymized/async-multipart-iterator/internal/boundary"
)

// ErrBoundaryNotFound is returned when the input ends while a part was still
// expecting content, which means the terminal boundary was never located.
// This includes empty documents and documents that do not contain the
// boundary at all.
var ErrBoundaryNotFound = errors.New("multipart: boundary not found in document")

var crlf = []byte("\r\n")

// EventSource is the upstream of a Demuxer. *boundary.Scanner implements it.
type EventSource interface {
	Next(ctx context.Context) (boundary.Event, error)
}

// Demuxer produces the parts of a document one at a time. Parts must be
// consumed in order; NextPart discards whatever the previous part's reader
// left unread.
type Demuxer struct {
	events  EventSource
	started bool
	done    bool
	cur     *Part
	err     error
}

// NewDemuxer returns a Demuxer reading from events.
func NewDemuxer(events EventSource) *Demuxer {
	return &Demuxer{events: events}
}

// NextPart returns the next part of the document, or io.EOF when there are
// no more parts. It returns ErrBoundaryNotFound if the input ended early.
func (d *Demuxer) NextPart(ctx context.Context) (*Part, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.cur != nil {
		if err := d.cur.skip(ctx); err != nil {
			return nil, err
		}
		d.cur = nil
	}
	if d.done {
		d.finish(ctx)
		return nil, io.EOF
	}

	if !d.started {
		// The signal of the first boundary closes the prologue, which never
		// carries data.
		if _, err := d.next(ctx); err != nil {
			return nil, err
		}
		d.started = true
	}

	ev, err := d.next(ctx)
	if err != nil {
		return nil, err
	}
	if ev.IsSignal() {
		// A boundary with no content before it: either the document just
		// ended, or an empty part, which is taken as the end as well.
		d.finish(ctx)
		return nil, io.EOF
	}
	d.cur = newPart(d, ev.Data)
	return d.cur, nil
}

func (d *Demuxer) next(ctx context.Context) (boundary.Event, error) {
	if d.err != nil {
		return boundary.Event{}, d.err
	}
	ev, err := d.events.Next(ctx)
	if errors.Is(err, io.EOF) {
		err = ErrBoundaryNotFound
	}
	if err != nil {
		d.err = err
		return boundary.Event{}, err
	}
	if ev.Signal == boundary.EndOfDocument {
		d.done = true
	}
	return ev, nil
}

// finish lets the upstream discard whatever follows the terminal boundary.
func (d *Demuxer) finish(ctx context.Context) {
	d.done = true
	d.err = io.EOF
	for {
		if _, err := d.events.Next(ctx); err != nil {
			return
		}
	}
}

// Part is one section of the document. Its header lines are read first,
// then its body is delivered chunk by chunk.
type Part struct {
	d *Demuxer

	buf        []byte // header bytes not yet split into lines
	header     [][]byte
	headerDone bool

	body  []byte // what followed the blank line in the last header segment
	ended bool
	err   error
}

func newPart(d *Demuxer, data []byte) *Part {
	return &Part{d: d, buf: data}
}

// Header returns the raw header lines of the part, without line
// terminators. The header block ends at the first empty line; a part that
// starts with an empty line has no header lines.
func (p *Part) Header(ctx context.Context) ([][]byte, error) {
	for !p.headerDone {
		if p.err != nil {
			return nil, p.err
		}
		if p.splitHeader() {
			break
		}
		ev, err := p.d.next(ctx)
		if err != nil {
			p.err = err
			return nil, err
		}
		if ev.IsSignal() {
			// The boundary closed the header block before any blank line.
			if len(p.buf) > 0 {
				p.header = append(p.header, p.buf)
				p.buf = nil
			}
			p.headerDone = true
			p.ended = true
			break
		}
		p.buf = concat(p.buf, ev.Data)
	}
	return p.header, nil
}

// splitHeader moves every complete line out of buf and reports whether the
// blank line ending the header block was found.
func (p *Part) splitHeader() bool {
	for {
		i := bytes.Index(p.buf, crlf)
		if i < 0 {
			return false
		}
		if i == 0 {
			p.body = p.buf[len(crlf):]
			p.buf = nil
			p.headerDone = true
			return true
		}
		p.header = append(p.header, p.buf[:i])
		p.buf = p.buf[i+len(crlf):]
	}
}

// Next returns the next chunk of the body, or io.EOF at the end of the part.
// The returned slice must not be modified.
func (p *Part) Next(ctx context.Context) ([]byte, error) {
	if !p.headerDone {
		if _, err := p.Header(ctx); err != nil {
			return nil, err
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if len(p.body) > 0 {
		chunk := p.body
		p.body = nil
		return chunk, nil
	}
	if p.ended {
		return nil, io.EOF
	}
	ev, err := p.d.next(ctx)
	if err != nil {
		p.err = err
		return nil, err
	}
	if ev.IsSignal() {
		p.ended = true
		return nil, io.EOF
	}
	return ev.Data, nil
}

func (p *Part) skip(ctx context.Context) error {
	for {
		_, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// concat returns a followed by b without writing into either.
func concat(a, b []byte) []byte {
	if len(a) == 0 {
		return b
	}
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	return append(buf, b...)
}
