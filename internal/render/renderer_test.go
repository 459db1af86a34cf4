package render

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestIdentityRenderer(t *testing.T) {
	out, err := Identity{}.Render(context.Background(), []byte("H\n\nX\n\nF\n"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "H\n\nX\n\nF\n" {
		t.Errorf("identity renderer must return input unchanged, got %q", out)
	}
}

func TestMarkdownRenderer(t *testing.T) {
	out, err := NewMarkdownRenderer().Render(context.Background(), []byte("# Title\n\nbody\n"))
	if err != nil {
		t.Fatal(err)
	}
	html := string(out)
	if !strings.Contains(html, "<h1>") || !strings.Contains(html, "body") {
		t.Errorf("unexpected markdown output: %q", html)
	}
}

func TestCommandRendererEmptyArgv(t *testing.T) {
	if _, err := NewCommandRenderer(nil); err == nil {
		t.Error("empty argv must be rejected")
	}
}

func TestCommandRendererPassThrough(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on cat")
	}
	r, err := NewCommandRenderer([]string{"cat"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Render(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "hello" {
		t.Errorf("expected pass-through output, got %q", out)
	}
}

func TestCommandRendererFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	r, err := NewCommandRenderer([]string{"sh", "-c", "echo bad input >&2; exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Render(context.Background(), []byte("x"))
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Errorf("stderr should surface in the error, got %q", err.Error())
	}
}

func TestCommandRendererMissingBinary(t *testing.T) {
	r, err := NewCommandRenderer([]string{"definitely-not-a-real-binary-xyz"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Render(context.Background(), nil); !errors.Is(err, ErrRenderFailed) {
		t.Errorf("expected ErrRenderFailed, got %v", err)
	}
}
