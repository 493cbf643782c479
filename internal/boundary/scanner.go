// Package boundary splits a chunked multipart document into data segments
// and boundary signals (RFC 1521, section 7.2).
package boundary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/randymized/async-multipart-iterator/internal/source"
)

// Signal marks a boundary occurrence in the event stream.
type Signal int

const (
	// None tags an event that carries data.
	None Signal = iota
	// EndOfPart is emitted for every boundary, including the terminal one.
	EndOfPart
	// EndOfDocument directly follows the EndOfPart of the terminal boundary.
	// Nothing is emitted after it.
	EndOfDocument
)

func (s Signal) String() string {
	switch s {
	case None:
		return "data"
	case EndOfPart:
		return "end-of-part"
	case EndOfDocument:
		return "end-of-document"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// Event is either a segment of part content or a boundary signal.
type Event struct {
	Data   []byte
	Signal Signal
}

// IsSignal reports whether the event is a boundary signal.
func (e Event) IsSignal() bool {
	return e.Signal != None
}

// ErrEmptyBoundary is returned when the boundary token is empty.
var ErrEmptyBoundary = errors.New("boundary: empty boundary token")

var (
	crlf   = []byte("\r\n")
	dashes = []byte("--")
)

// Scanner turns a chunk source into an ordered stream of events. Data is
// only emitted between the first boundary and the terminal boundary, and
// the concatenation of the data between two signals is exactly the raw
// content of one part.
//
// Data slices may alias the chunks returned by the source; callers must
// not modify them.
type Scanner struct {
	src   source.Source
	delim []byte // CRLF "--" token

	// buf holds the bytes that have been read but not yet emitted or
	// discarded. Between chunks it never holds more than len(delim)-1 bytes.
	buf []byte

	first     bool // no byte of the document has been examined yet
	prologue  bool // no boundary has been confirmed yet
	tail      bool // a delimiter was just consumed; buf starts with its tail
	terminal  bool
	exhausted bool

	pending []Event
	err     error
}

// NewScanner returns a Scanner for documents delimited by token.
func NewScanner(token string, src source.Source) (*Scanner, error) {
	if token == "" {
		return nil, ErrEmptyBoundary
	}
	delim := make([]byte, 0, len(token)+4)
	delim = append(delim, crlf...)
	delim = append(delim, dashes...)
	delim = append(delim, token...)
	return &Scanner{
		src:      src,
		delim:    delim,
		first:    true,
		prologue: true,
	}, nil
}

// Next returns the next event. It returns io.EOF after EndOfDocument, or
// when the source runs out before the terminal boundary was seen. Errors
// from the source other than io.EOF are returned as is.
func (s *Scanner) Next(ctx context.Context) (Event, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.err != nil {
			return Event{}, s.err
		}
		if s.terminal {
			// Trailing input is read and thrown away so that the caller's
			// producer is never left half consumed.
			_ = source.Drain(ctx, s.src)
			s.buf = nil
			s.err = io.EOF
			continue
		}

		progressed := s.scan()
		if len(s.pending) > 0 || progressed {
			continue
		}
		if s.exhausted {
			s.err = io.EOF
			continue
		}

		chunk, err := s.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			s.exhausted = true
			continue
		}
		if err != nil {
			s.err = err
			continue
		}
		s.feed(chunk)
	}
}

// feed appends chunk to the retained remnant. The caller's chunk is never
// written to.
func (s *Scanner) feed(chunk []byte) {
	if len(s.buf) == 0 {
		s.buf = chunk
		return
	}
	buf := make([]byte, 0, len(s.buf)+len(chunk))
	buf = append(buf, s.buf...)
	s.buf = append(buf, chunk...)
}

// scan advances over buf as far as its content allows. It reports false
// when nothing more can be decided without another chunk.
func (s *Scanner) scan() bool {
	if s.first {
		lead := s.delim[len(crlf):]
		n := min(len(s.buf), len(lead))
		if !bytes.Equal(s.buf[:n], lead[:n]) {
			s.first = false
		} else if n < len(lead) {
			return false
		} else {
			// The document opens with the boundary itself. Supply the CRLF
			// that the delimiter pattern expects in front of it.
			buf := make([]byte, 0, len(crlf)+len(s.buf))
			buf = append(buf, crlf...)
			s.buf = append(buf, s.buf...)
			s.first = false
		}
	}

	if s.tail {
		return s.readTail()
	}

	i := bytes.Index(s.buf, s.delim)
	if i < 0 {
		// Keep enough to complete a delimiter that straddles the next chunk.
		if safe := len(s.buf) - (len(s.delim) - 1); safe > 0 {
			s.emit(s.buf[:safe])
			s.buf = s.buf[safe:]
		}
		return false
	}
	s.emit(s.buf[:i])
	s.buf = s.buf[i+len(s.delim):]
	s.tail = true
	return true
}

// readTail classifies the two bytes that follow a delimiter: "--" closes
// the document and CRLF closes the current part. Anything else means the
// delimiter was ordinary content.
func (s *Scanner) readTail() bool {
	if len(s.buf) < 2 {
		return false
	}
	s.tail = false
	switch {
	case bytes.HasPrefix(s.buf, dashes):
		s.prologue = false
		s.terminal = true
		s.buf = nil
		s.pending = append(s.pending, Event{Signal: EndOfPart}, Event{Signal: EndOfDocument})
	case bytes.HasPrefix(s.buf, crlf):
		s.prologue = false
		s.buf = s.buf[len(crlf):]
		s.pending = append(s.pending, Event{Signal: EndOfPart})
	default:
		s.emit(s.delim[:1])
		buf := make([]byte, 0, len(s.delim)-1+len(s.buf))
		buf = append(buf, s.delim[1:]...)
		s.buf = append(buf, s.buf...)
	}
	return true
}

func (s *Scanner) emit(data []byte) {
	if s.prologue || len(data) == 0 {
		return
	}
	s.pending = append(s.pending, Event{Data: data})
}
