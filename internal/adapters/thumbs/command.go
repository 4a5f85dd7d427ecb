package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandGenerator fulfils the thumbnail capability by invoking an external
// program as `<command> <sourcePath> <destPath>`. The program is expected to
// render a preview of the object at sourcePath into destPath.
type CommandGenerator struct {
	command string
}

func NewCommandGenerator(command string) *CommandGenerator {
	return &CommandGenerator{command: command}
}

func (g *CommandGenerator) Generate(ctx context.Context, sourcePath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create thumbnail directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, g.command, sourcePath, destPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("thumbnail command %s: %w: %s", g.command, err, bytes.TrimSpace(out))
	}
	if _, err := os.Stat(destPath); err != nil {
		return fmt.Errorf("thumbnail command %s produced no output file: %w", g.command, err)
	}
	return nil
}
