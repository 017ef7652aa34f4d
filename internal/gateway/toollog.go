package gateway

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storyvox/internal/logging"
)

func writeToolLog(logger *slog.Logger, dir, name string, args []string, stdout, stderr []byte, runErr error) string {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.WarnWithContext(logger, "failed to create tool log directory; tool output not captured", "tool_log_dir_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "tool diagnostics unavailable for this invocation"),
		)
		return ""
	}

	timestamp := time.Now().UTC().Format("20060102T150405.000Z")
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", timestamp, toolLogName(name)))

	var b strings.Builder
	b.WriteString("command: ")
	b.WriteString(strings.TrimSpace(strings.Join(append([]string{name}, args...), " ")))
	b.WriteByte('\n')
	if runErr != nil {
		b.WriteString("error: ")
		b.WriteString(runErr.Error())
		b.WriteByte('\n')
	}
	b.WriteString("stdout:\n")
	b.Write(stdout)
	b.WriteString("\nstderr:\n")
	b.Write(stderr)
	b.WriteByte('\n')

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		logging.WarnWithContext(logger, "failed to write tool log; output detail lost", "tool_log_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "tool diagnostics unavailable for this invocation"),
		)
		return ""
	}
	return path
}

func toolLogName(name string) string {
	value := strings.ToLower(strings.TrimSpace(filepath.Base(name)))
	value = strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-").Replace(value)
	if value == "" || value == "." {
		return "tool"
	}
	return value
}
