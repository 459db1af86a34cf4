package render

import (
	"bytes"
	"context"

	"github.com/yuin/goldmark"
)

// MarkdownRenderer converts Markdown to HTML in-process. It is the default
// renderer when no external command is configured.
type MarkdownRenderer struct {
	md goldmark.Markdown
}

// NewMarkdownRenderer creates a Markdown renderer with CommonMark defaults.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{md: goldmark.New()}
}

// Render implements Renderer.
func (r *MarkdownRenderer) Render(_ context.Context, src []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return nil, renderError("markdown conversion", err)
	}
	return buf.Bytes(), nil
}
