package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

const (
	defaultShellTimeout = 30 * time.Second
	defaultMaxOutput    = 10_000
)

// Commands containing any of these are refused outright.
var blockedPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -rf ~",
	"mkfs",
	"dd if=/dev/zero",
	"dd if=/dev/random",
	":(){",
	"> /dev/sda",
	"chmod -r 777 /",
	"shutdown",
	"reboot",
	"poweroff",
}

type shellArgs struct {
	Command    string `json:"command" jsonschema_description:"The shell command to execute"`
	WorkingDir string `json:"working_dir,omitempty" jsonschema_description:"Working directory (optional)"`
}

// Shell runs commands through sh -c.
type Shell struct {
	WorkingDir string
	Timeout    time.Duration
	MaxOutput  int
}

// NewShell creates a shell capability. A zero timeout means 30 seconds.
func NewShell(workingDir string, timeout time.Duration) *Shell {
	if timeout <= 0 {
		timeout = defaultShellTimeout
	}
	return &Shell{WorkingDir: workingDir, Timeout: timeout, MaxOutput: defaultMaxOutput}
}

func (s *Shell) Name() string { return "shell" }

func (s *Shell) Description() string {
	return "Execute a shell command on the system. Returns stdout, stderr, and exit code."
}

func (s *Shell) ParameterSchema() *jsonschema.Schema { return capability.SchemaFor[shellArgs]() }

func (s *Shell) Execute(ctx context.Context, arguments string) (string, error) {
	command := strings.TrimSpace(gjson.Get(arguments, "command").String())
	if command == "" {
		return "", errors.New("command is required")
	}
	if pattern, blocked := isBlocked(command); blocked {
		return "", fmt.Errorf("command blocked: matches %q", pattern)
	}

	dir := gjson.Get(arguments, "working_dir").String()
	if dir == "" {
		dir = s.WorkingDir
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("command timed out after %s", s.Timeout)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to execute: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return fmt.Sprintf("Exit code: %d\n\n--- stdout ---\n%s\n--- stderr ---\n%s",
		exitCode,
		truncateOutput(stdout.String(), s.MaxOutput),
		truncateOutput(stderr.String(), s.MaxOutput),
	), nil
}

func isBlocked(command string) (string, bool) {
	lower := strings.ToLower(command)
	for _, p := range blockedPatterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func truncateOutput(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "") + fmt.Sprintf("... [truncated, %d total bytes]", len(s))
}
