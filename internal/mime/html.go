package mime

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/wesm/mailidx/internal/textutil"
)

// HTMLConverter renders an HTML document as plain text.
type HTMLConverter interface {
	ToText(ctx context.Context, html string) (string, error)
}

// LibraryConverter converts in process with html2text, falling back to tag
// stripping when the document cannot be parsed.
type LibraryConverter struct{}

// ToText implements HTMLConverter.
func (LibraryConverter) ToText(_ context.Context, doc string) (string, error) {
	text, err := html2text.FromString(doc, html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		return StripHTML(doc), nil
	}
	return text, nil
}

// CommandConverter runs an external renderer such as "elinks -dump". The
// HTML is written to a temporary file whose path is appended to Args.
type CommandConverter struct {
	Path string
	Args []string
}

// ToText implements HTMLConverter.
func (c CommandConverter) ToText(ctx context.Context, doc string) (string, error) {
	f, err := os.CreateTemp("", "mailidx-*.html")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(doc); err != nil {
		f.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	args := append(append([]string(nil), c.Args...), f.Name())
	out, err := exec.CommandContext(ctx, c.Path, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %w: %s", c.Path, err, textutil.FirstLine(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", c.Path, err)
	}
	return string(out), nil
}

// NewHTMLConverter returns a converter for command, a whitespace separated
// command line. An empty command, or one whose program is not on PATH,
// selects the in-process LibraryConverter.
func NewHTMLConverter(command string, logger *slog.Logger) HTMLConverter {
	if logger == nil {
		logger = slog.Default()
	}
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return LibraryConverter{}
	}
	path, err := exec.LookPath(fields[0])
	if err != nil {
		logger.Warn("html converter not found, using built-in conversion",
			"command", fields[0], "error", err)
		return LibraryConverter{}
	}
	return CommandConverter{Path: path, Args: fields[1:]}
}

var (
	blockTagRe  = regexp.MustCompile(`(?i)<(/?)(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|ul|ol)[^>]*>`)
	scriptTagRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTagRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headTagRe   = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	anyTagRe    = regexp.MustCompile(`<[^>]*>`)
)

// StripHTML removes tags and decodes entities, turning block elements into
// line breaks.
func StripHTML(doc string) string {
	text := scriptTagRe.ReplaceAllString(doc, "")
	text = styleTagRe.ReplaceAllString(text, "")
	text = headTagRe.ReplaceAllString(text, "")
	text = blockTagRe.ReplaceAllString(text, "\n")
	text = anyTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
