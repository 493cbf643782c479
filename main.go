package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/randymized/async-multipart-iterator/internal/args"
	"github.com/randymized/async-multipart-iterator/internal/client"
	"github.com/randymized/async-multipart-iterator/internal/config"
	"github.com/randymized/async-multipart-iterator/internal/multipart"
	"github.com/randymized/async-multipart-iterator/internal/render"
	"github.com/randymized/async-multipart-iterator/internal/source"
	"github.com/randymized/async-multipart-iterator/internal/stream"
)

// main function to parse arguments and decode the document.
func main() {
	ctx := context.Background()

	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		LogWarn("using default configuration: %v", err)
		cfg = config.NewDefaultConfig()
	}

	a, err := args.ParseArgs(ctx, *cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	setVerbose(a.Verbose)

	if err := run(ctx, cfg, a, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// open returns the document named by the arguments along with the content
// type it was served with, if any.
func open(ctx context.Context, cfg *config.Config, a args.Arguments) (io.ReadCloser, string, error) {
	if a.IsURL() {
		doc, err := client.Fetch(ctx, a.Input, cfg.Timeout)
		if err != nil {
			return nil, "", fmt.Errorf("failed to fetch %s: %w", a.Input, err)
		}
		LogInfo("fetched %s (%s)", a.Input, doc.ContentType)
		return doc.Body, doc.ContentType, nil
	}
	r, err := a.Open()
	return r, "", err
}

// run decodes the input and renders its parts to out. The input is read by
// one goroutine and decoded by another, so a slow reader never stalls
// rendering of the parts already received.
func run(ctx context.Context, cfg *config.Config, a args.Arguments, out io.Writer) error {
	r, contentType, err := open(ctx, cfg, a)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.Close(); err != nil {
			LogError("failed to close input: %v", err)
		}
	}()

	boundary, err := a.ResolveBoundary(contentType)
	if err != nil {
		return err
	}
	enc, err := multipart.LookupCharset(a.Charset)
	if err != nil {
		return err
	}
	LogInfo("decoding %s with boundary %q, %d byte chunks", a.Input, boundary, a.ChunkSize)

	g, ctx := errgroup.WithContext(ctx)
	chunks := make(chan source.Chunk)
	it, err := multipart.NewIterator(boundary, source.FromChannel(chunks), multipart.WithEncoding(enc))
	if err != nil {
		return err
	}

	parser := stream.NewParser(ctx)
	renderer := render.NewTerminalRenderer(out, render.Options{
		PlainText:  a.UsePlainText,
		RawHeaders: a.RawHeaders,
		Wrap:       render.TerminalWrap(cfg.Render.Wrap),
	})

	g.Go(func() error {
		return source.Pump(ctx, r, a.ChunkSize, chunks)
	})
	g.Go(func() error {
		parser.Process(it)
		return nil
	})
	g.Go(func() error {
		return renderer.Render(parser.Chunks())
	})

	if err := g.Wait(); err != nil {
		return err
	}
	LogInfo("decoded %d parts", renderer.Parts())
	return nil
}
