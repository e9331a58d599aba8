package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystem_WriteThenRead(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	ctx := context.Background()

	out, err := fs.WriteFile().Execute(ctx, `{"path":"notes/a.txt","content":"hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "Wrote 5 bytes to notes/a.txt", out)

	got, err := fs.ReadFile().Execute(ctx, `{"path":"notes/a.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestFilesystem_ReadMissing(t *testing.T) {
	fs := NewFilesystem(t.TempDir())

	_, err := fs.ReadFile().Execute(context.Background(), `{"path":"nope.txt"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestFilesystem_RejectsEscape(t *testing.T) {
	fs := NewFilesystem(t.TempDir())
	ctx := context.Background()

	_, err := fs.ReadFile().Execute(ctx, `{"path":"../../etc/passwd"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace")

	_, err = fs.WriteFile().Execute(ctx, `{"path":"/tmp/zenclaw-escape.txt","content":"x"}`)
	require.Error(t, err)
}

func TestFilesystem_RejectsSymlinkEscape(t *testing.T) {
	ws := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(ws, "link")))

	fs := NewFilesystem(ws)
	_, err := fs.WriteFile().Execute(context.Background(), `{"path":"link/new.txt","content":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the workspace")
}

func TestFilesystem_EditFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "f.txt"), []byte("one two two"), 0o644))
	fs := NewFilesystem(ws)
	ctx := context.Background()

	_, err := fs.EditFile().Execute(ctx, `{"path":"f.txt","old_text":"two","new_text":"2"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "occurs 2 times")

	_, err = fs.EditFile().Execute(ctx, `{"path":"f.txt","old_text":"one","new_text":"1"}`)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(ws, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1 two two", string(data))

	_, err = fs.EditFile().Execute(ctx, `{"path":"f.txt","old_text":"three","new_text":"3"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFilesystem_ListDir(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(ws, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws, "b.txt"), make([]byte, 2048), 0o644))
	fs := NewFilesystem(ws)

	out, err := fs.ListDir().Execute(context.Background(), `{"path":"."}`)
	require.NoError(t, err)
	assert.Equal(t, "[dir]  sub\n[file] b.txt (2.0 KB)", out)

	empty, err := fs.ListDir().Execute(context.Background(), `{"path":"sub"}`)
	require.NoError(t, err)
	assert.Equal(t, "Directory sub is empty", empty)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "1.0 MB", formatSize(1<<20))
}
