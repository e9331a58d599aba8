package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Paths is the on-disk layout under the zenclaw home directory.
type Paths struct {
	Base      string
	Config    string
	Data      string
	Database  string
	Logs      string
	Workspace string
}

// homeEnv overrides the default home of ~/.zenclaw.
const homeEnv = "ZENCLAW_HOME"

// ResolvePaths locates the zenclaw home. ZENCLAW_HOME wins when set and may
// start with "~/".
func ResolvePaths() (Paths, error) {
	userHome, err := os.UserHomeDir()
	base := os.Getenv(homeEnv)
	switch {
	case base == "" && err != nil:
		return Paths{}, err
	case base == "":
		base = filepath.Join(userHome, ".zenclaw")
	case strings.HasPrefix(base, "~/") && err == nil:
		base = filepath.Join(userHome, base[2:])
	}
	return layout(filepath.Clean(base)), nil
}

func layout(base string) Paths {
	p := Paths{
		Base:      base,
		Config:    filepath.Join(base, "config.yaml"),
		Data:      filepath.Join(base, "data"),
		Logs:      filepath.Join(base, "logs"),
		Workspace: filepath.Join(base, "workspace"),
	}
	p.Database = filepath.Join(p.Data, "zenclaw.db")
	return p
}

// EnsureDirs creates the home and its subdirectories, owner-only.
func (p Paths) EnsureDirs() error {
	for _, dir := range [...]string{p.Base, p.Data, p.Logs, p.Workspace} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// MemoryPath is memory.path, or the database under the zenclaw home.
func (c Config) MemoryPath(p Paths) string {
	return firstSet(c.Memory.Path, p.Database)
}

// WorkspacePath is tools.workspace, or the workspace under the zenclaw home.
func (c Config) WorkspacePath(p Paths) string {
	return firstSet(c.Tools.Workspace, p.Workspace)
}

func firstSet(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
