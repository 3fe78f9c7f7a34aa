package artifact

import (
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
)

// PostProcessor starts an external command on every sealed artifact. The
// command runs in its own session and Run does not wait for it.
type PostProcessor struct {
	Command string
}

// Run starts the command with path as its only argument.
func (p PostProcessor) Run(path string) error {
	if p.Command == "" {
		return nil
	}
	cmd := exec.Command(p.Command, path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	slog.Info("executing post process command", "command", p.Command, "artifact", path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("post process %s: %w", p.Command, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("post process command failed", "command", p.Command, "artifact", path, "error", err)
		}
	}()
	return nil
}
