package stream

import "context"

// Chunk represents one step of a decoded document: the header of a part,
// a piece of its body, or the end of the part.
type Chunk struct {
	Part      int
	Header    []string
	RawHeader [][]byte
	Content   []byte
	Done      bool
	Error     error
}

// IsHeader reports whether the chunk opens a new part.
func (c Chunk) IsHeader() bool {
	return c.Header != nil
}

// Parser handles the processing of a multipart document into chunks
type Parser struct {
	ctx    context.Context
	chunks chan Chunk
}

func NewParser(ctx context.Context) *Parser {
	return &Parser{
		ctx:    ctx,
		chunks: make(chan Chunk),
	}
}

func (p *Parser) Chunks() <-chan Chunk {
	return p.chunks
}
