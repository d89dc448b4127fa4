// Package render turns a graph-description (DOT) string into an image
// artifact. Rendering is an external collaborator of the journal pipeline:
// the pipeline only depends on the Renderer contract and treats any
// rejection as "no visualization".
package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Renderer interface {
	// Render produces a PNG from the DOT string and returns its path, or
	// an error if the description is rejected.
	Render(ctx context.Context, dot string) (string, error)
}

// Graphviz renders through the dot executable.
type Graphviz struct {
	OutDir  string
	Timeout time.Duration
}

func NewGraphviz(outDir string, timeout time.Duration) (*Graphviz, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create visualizations dir %s: %w", outDir, err)
	}
	return &Graphviz{OutDir: outDir, Timeout: timeout}, nil
}

func (g *Graphviz) Render(ctx context.Context, dot string) (string, error) {
	if !strings.Contains(strings.ToLower(dot), "digraph") {
		return "", fmt.Errorf("graph description is not a digraph")
	}

	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	outPath := filepath.Join(g.OutDir, fmt.Sprintf("jmap_%s.png", uuid.NewString()))
	cmd := exec.CommandContext(ctx, "dot", "-Tpng", "-o", outPath)
	cmd.Stdin = strings.NewReader(dot)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("dot rendering failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", fmt.Errorf("dot produced no output file: %w", err)
	}
	return outPath, nil
}
