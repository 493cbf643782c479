package args

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randymized/async-multipart-iterator/internal/config"
)

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Input           string
	Boundary        string
	DefaultBoundary string
	ContentType     string
	Charset         string
	ChunkSize       int
	UsePlainText    bool
	RawHeaders      bool
	Verbose         bool
}

// IsURL reports whether the input names an http or https resource.
func (a Arguments) IsURL() bool {
	return strings.HasPrefix(a.Input, "http://") || strings.HasPrefix(a.Input, "https://")
}

// ParseArgs parses command-line arguments, returning an Arguments struct.
// Settings not given on the command line fall back to cfg. When no input is
// named and stdin is piped, the document is read from stdin.
func ParseArgs(ctx context.Context, cfg config.Config, argv []string) (Arguments, error) {
	args := Arguments{DefaultBoundary: cfg.Boundary}

	rootCmd := &cobra.Command{
		Use:   "multipart-iterator [file|url|-] [flags]",
		Short: "Decode a multipart document into its parts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			if len(cmdArgs) > 0 {
				args.Input = cmdArgs[0]
			}
			return nil
		},
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}
	rootCmd.SetArgs(argv)
	rootCmd.SetContext(ctx)

	flags := rootCmd.Flags()
	flags.StringVarP(&args.Boundary, "boundary", "b", "", "The boundary token separating the parts")
	flags.StringVar(&args.ContentType, "content-type", "", "A multipart Content-Type value to take the boundary from")
	flags.StringVar(&args.Charset, "charset", cfg.Charset, "Character set of the header lines")
	flags.IntVar(&args.ChunkSize, "chunk-size", cfg.ChunkSize, "Size of the chunks read from the input")
	flags.BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg), "Disable markdown rendering")
	flags.BoolVar(&args.RawHeaders, "raw-headers", false, "Print header lines as quoted raw bytes")
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "Log progress to stderr")

	// Execute the command
	if err := rootCmd.Execute(); err != nil {
		return Arguments{}, err
	}

	if args.Input == "" {
		if !stdinIsPiped() {
			return Arguments{}, errors.New("no input provided")
		}
		args.Input = "-"
	}
	if args.ChunkSize <= 0 {
		return Arguments{}, fmt.Errorf("chunk size must be positive, got %d", args.ChunkSize)
	}

	return args, nil
}

// ResolveBoundary picks the boundary token: the --boundary flag first, then
// the --content-type flag, then the Content-Type reported by the input
// itself (an HTTP response), then the configured default.
func (a Arguments) ResolveBoundary(inputContentType string) (string, error) {
	if a.Boundary != "" {
		return a.Boundary, nil
	}
	for _, ct := range []string{a.ContentType, inputContentType} {
		if ct == "" {
			continue
		}
		b, err := BoundaryFromContentType(ct)
		if err != nil {
			return "", err
		}
		return b, nil
	}
	if a.DefaultBoundary != "" {
		return a.DefaultBoundary, nil
	}
	return "", errors.New("no boundary given; use --boundary or --content-type")
}

// BoundaryFromContentType extracts the boundary parameter of a multipart
// media type such as `multipart/mixed; boundary="abc"`.
func BoundaryFromContentType(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("content type %q is not multipart", mediaType)
	}
	b := params["boundary"]
	if b == "" {
		return "", fmt.Errorf("content type %q has no boundary parameter", contentType)
	}
	return b, nil
}

// Open returns a reader over a local input; "-" is stdin.
func (a Arguments) Open() (io.ReadCloser, error) {
	if a.Input == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(a.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) == 0
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected
	if fileInfo, _ := os.Stdout.Stat(); fileInfo != nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			return true
		}
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if term := os.Getenv("TERM"); term == "dumb" {
		return true
	}

	return false
}
