package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

// Filesystem builds the file capabilities. When Workspace is set every path
// must resolve inside it; relative paths are taken relative to it.
type Filesystem struct {
	Workspace string
}

// NewFilesystem creates file capabilities rooted at workspace.
func NewFilesystem(workspace string) *Filesystem {
	return &Filesystem{Workspace: workspace}
}

type pathArgs struct {
	Path string `json:"path" jsonschema_description:"The file path"`
}

type writeArgs struct {
	Path    string `json:"path" jsonschema_description:"The file path to write"`
	Content string `json:"content" jsonschema_description:"The content to write"`
}

type editArgs struct {
	Path    string `json:"path" jsonschema_description:"The file path to edit"`
	OldText string `json:"old_text" jsonschema_description:"Exact text to replace; must occur exactly once"`
	NewText string `json:"new_text" jsonschema_description:"Replacement text"`
}

// ReadFile returns the read_file capability.
func (f *Filesystem) ReadFile() capability.Func {
	return capability.Func{
		FuncName:        "read_file",
		FuncDescription: "Read the contents of a file at the given path.",
		Schema:          capability.SchemaFor[pathArgs](),
		Fn: func(_ context.Context, args string) (string, error) {
			path, err := f.resolve(gjson.Get(args, "path").String())
			if err != nil {
				return "", err
			}
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("file not found: %s", gjson.Get(args, "path").String())
			}
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			return string(data), nil
		},
	}
}

// WriteFile returns the write_file capability. Parent directories are created.
func (f *Filesystem) WriteFile() capability.Func {
	return capability.Func{
		FuncName:        "write_file",
		FuncDescription: "Write content to a file, creating it and any parent directories if needed.",
		Schema:          capability.SchemaFor[writeArgs](),
		Fn: func(_ context.Context, args string) (string, error) {
			path, err := f.resolve(gjson.Get(args, "path").String())
			if err != nil {
				return "", err
			}
			content := gjson.Get(args, "content").String()
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Wrote %d bytes to %s", len(content), gjson.Get(args, "path").String()), nil
		},
	}
}

// EditFile returns the edit_file capability, a single exact-match replacement.
func (f *Filesystem) EditFile() capability.Func {
	return capability.Func{
		FuncName:        "edit_file",
		FuncDescription: "Replace one exact occurrence of old_text with new_text in a file.",
		Schema:          capability.SchemaFor[editArgs](),
		Fn: func(_ context.Context, args string) (string, error) {
			parsed := gjson.GetMany(args, "path", "old_text", "new_text")
			path, err := f.resolve(parsed[0].String())
			if err != nil {
				return "", err
			}
			oldText, newText := parsed[1].String(), parsed[2].String()
			if oldText == "" {
				return "", errors.New("old_text is required")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			content := string(data)
			switch n := strings.Count(content, oldText); n {
			case 0:
				return "", errors.New("old_text not found in file")
			case 1:
			default:
				return "", fmt.Errorf("old_text occurs %d times, it must be unique", n)
			}

			updated := strings.Replace(content, oldText, newText, 1)
			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("Edited %s", parsed[0].String()), nil
		},
	}
}

// ListDir returns the list_dir capability.
func (f *Filesystem) ListDir() capability.Func {
	return capability.Func{
		FuncName:        "list_dir",
		FuncDescription: "List the contents of a directory.",
		Schema:          capability.SchemaFor[pathArgs](),
		Fn: func(_ context.Context, args string) (string, error) {
			raw := gjson.Get(args, "path").String()
			if raw == "" {
				raw = "."
			}
			path, err := f.resolve(raw)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(path)
			if err != nil {
				return "", fmt.Errorf("reading directory: %w", err)
			}
			if len(entries) == 0 {
				return fmt.Sprintf("Directory %s is empty", raw), nil
			}

			lines := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() {
					lines = append(lines, "[dir]  "+e.Name())
					continue
				}
				var size int64
				if info, err := e.Info(); err == nil {
					size = info.Size()
				}
				lines = append(lines, fmt.Sprintf("[file] %s (%s)", e.Name(), formatSize(size)))
			}
			sort.Strings(lines)
			return strings.Join(lines, "\n"), nil
		},
	}
}

func (f *Filesystem) resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path is required")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if f.Workspace != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Workspace, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if f.Workspace == "" {
		return abs, nil
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved, err = resolvePartialSymlinks(abs)
		if err != nil {
			return "", fmt.Errorf("resolving path: %w", err)
		}
	}
	root, err := filepath.EvalSymlinks(f.Workspace)
	if err != nil {
		return "", fmt.Errorf("resolving workspace: %w", err)
	}
	root, resolved = filepath.Clean(root), filepath.Clean(resolved)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", errors.New("access denied: path is outside the workspace")
	}
	return resolved, nil
}

// resolvePartialSymlinks resolves symlinks on the longest existing prefix of
// absPath and appends the rest, so a not-yet-created file cannot escape
// through a linked parent.
func resolvePartialSymlinks(absPath string) (string, error) {
	existing := string(filepath.Separator)
	var remaining []string
	for _, part := range strings.Split(absPath, string(filepath.Separator)) {
		if part == "" {
			continue
		}
		if len(remaining) > 0 {
			remaining = append(remaining, part)
			continue
		}
		candidate := filepath.Join(existing, part)
		if _, err := os.Lstat(candidate); err != nil {
			remaining = append(remaining, part)
			continue
		}
		existing = candidate
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, remaining...)...), nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
