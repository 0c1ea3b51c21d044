// Package render converts note bodies to HTML.
package render

import (
	"bytes"
	"fmt"
	stdhtml "html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/serroba/notesync/internal/model"
)

// HTML renders markdown with GitHub flavoured extensions. Raw HTML inside
// markdown is dropped; bodies stored as html are returned as is.
type HTML struct {
	md goldmark.Markdown
}

// New returns a renderer with GitHub flavoured extensions enabled.
func New() *HTML {
	return &HTML{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)}
}

// Render converts body to HTML according to contentType.
func (r *HTML) Render(body string, contentType model.ContentType) (string, error) {
	switch contentType {
	case model.ContentMarkdown:
		var out bytes.Buffer
		if err := r.md.Convert([]byte(body), &out); err != nil {
			return "", fmt.Errorf("render markdown: %w", err)
		}

		return out.String(), nil
	case model.ContentHTML:
		return body, nil
	case model.ContentPlain, "":
		return "<pre>" + stdhtml.EscapeString(body) + "</pre>", nil
	default:
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
}
