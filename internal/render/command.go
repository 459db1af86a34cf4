package render

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandRenderer shells out to an external converter. The assembled document
// is written to the command's stdin and the rendered output read from stdout.
type CommandRenderer struct {
	argv []string
}

// NewCommandRenderer creates a renderer invoking the given argv. The argv must
// not be empty.
func NewCommandRenderer(argv []string) (*CommandRenderer, error) {
	if len(argv) == 0 {
		return nil, renderError("empty renderer command", nil)
	}
	return &CommandRenderer{argv: argv}, nil
}

// Render implements Renderer.
func (r *CommandRenderer) Render(ctx context.Context, src []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdin = bytes.NewReader(src)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Invoking renderer command", slog.String("command", strings.Join(r.argv, " ")))
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = r.argv[0]
		}
		return nil, renderError(msg, err)
	}
	return stdout.Bytes(), nil
}
