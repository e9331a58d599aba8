package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/store"
)

func newTestKnowledge(t *testing.T) *store.KnowledgeStore {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewKnowledgeStore(db)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestIndexer_IndexFileThenSearch(t *testing.T) {
	ws := t.TempDir()
	writeFiles(t, ws, map[string]string{"notes/deploy.md": "Staging deploys run every Tuesday from Frankfurt."})
	kb := newTestKnowledge(t)
	ix := NewIndexer(NewFilesystem(ws), kb, 200, 40).Capability()
	ctx := context.Background()

	out, err := ix.Execute(ctx, `{"action":"index","path":"notes/deploy.md"}`)
	require.NoError(t, err)
	assert.Equal(t, "Indexed notes/deploy.md (1 chunks)", out)

	out, err = ix.Execute(ctx, `{"action":"search","query":"Frankfurt"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Found 1 results")
	assert.Contains(t, out, "notes/deploy.md")

	out, err = ix.Execute(ctx, `{"action":"stats"}`)
	require.NoError(t, err)
	assert.Equal(t, "Knowledge base: 1 documents indexed", out)

	ctxText, err := kb.BuildContext(ctx, "Tuesday", 3)
	require.NoError(t, err)
	assert.Contains(t, ctxText, "Staging deploys", "indexed files feed retrieval")
}

func TestIndexer_DirectorySkipsHiddenAndBuildOutput(t *testing.T) {
	ws := t.TempDir()
	writeFiles(t, ws, map[string]string{
		"docs/a.md":              "alpha document",
		"docs/b.txt":             "beta document",
		"docs/Makefile":          "build: all",
		"docs/image.png":         "not text",
		"docs/.secret.md":        "hidden",
		"docs/node_modules/x.js": "dependency",
		"docs/.git/config":       "git internals",
		"docs/empty.md":          "   ",
	})
	kb := newTestKnowledge(t)
	ix := NewIndexer(NewFilesystem(ws), kb, 200, 40).Capability()

	out, err := ix.Execute(context.Background(), `{"action":"index","path":"docs"}`)
	require.NoError(t, err)
	assert.Equal(t, "Indexed 4 files (3 chunks) from docs", out)

	n, err := kb.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestIndexer_ChunksLargeFiles(t *testing.T) {
	ws := t.TempDir()
	writeFiles(t, ws, map[string]string{"long.txt": strings.Repeat("word ", 450)})
	ix := NewIndexer(NewFilesystem(ws), newTestKnowledge(t), 200, 40).Capability()

	out, err := ix.Execute(context.Background(), `{"action":"index","path":"long.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "Indexed long.txt (3 chunks)", out)
}

func TestIndexer_Errors(t *testing.T) {
	ws := t.TempDir()
	ix := NewIndexer(NewFilesystem(ws), newTestKnowledge(t), 200, 40).Capability()
	ctx := context.Background()

	tests := []struct {
		name string
		args string
		want string
	}{
		{"missing path", `{"action":"index","path":"nope.md"}`, "path not found"},
		{"outside workspace", `{"action":"index","path":"../elsewhere"}`, "outside the workspace"},
		{"empty query", `{"action":"search","query":"  "}`, "query is required"},
		{"unknown action", `{"action":"shred"}`, "unknown action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ix.Execute(ctx, tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	out, err := ix.Execute(ctx, `{"action":"search","query":"anything"}`)
	require.NoError(t, err)
	assert.Equal(t, `No results for "anything"`, out)
}
