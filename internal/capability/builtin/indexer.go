package builtin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/store"
)

const (
	indexSearchLimit  = 5
	indexPreviewRunes = 200
	indexMaxFiles     = 500
	indexMaxErrors    = 5
)

// Knowledge is the document index behind index_file.
type Knowledge interface {
	IndexChunked(ctx context.Context, source, text string, words, overlap int) ([]int64, error)
	Search(ctx context.Context, query string, limit int) ([]store.Document, error)
	Count(ctx context.Context) (int, error)
}

var indexedExts = map[string]bool{
	".go": true, ".rs": true, ".py": true, ".js": true, ".ts": true, ".c": true,
	".cpp": true, ".h": true, ".java": true, ".rb": true, ".sh": true, ".md": true,
	".txt": true, ".toml": true, ".yaml": true, ".yml": true, ".json": true,
	".xml": true, ".html": true, ".css": true, ".sql": true, ".ini": true,
	".cfg": true, ".csv": true,
}

var indexedNames = map[string]bool{"makefile": true, "dockerfile": true, "readme": true}

var skippedDirs = map[string]bool{
	"node_modules": true, "target": true, "vendor": true, "__pycache__": true,
	"dist": true, "build": true,
}

type indexArgs struct {
	Action string `json:"action" jsonschema:"enum=index,enum=search,enum=stats" jsonschema_description:"index a file or directory, search the knowledge base, or show stats"`
	Path   string `json:"path,omitempty" jsonschema_description:"File or directory to index"`
	Query  string `json:"query,omitempty" jsonschema_description:"Search text for the search action"`
}

// Indexer feeds workspace files into the knowledge base used for retrieval.
type Indexer struct {
	files   *Filesystem
	kb      Knowledge
	words   int
	overlap int
}

// NewIndexer creates an indexer confined to the same workspace as files.
// words and overlap size the chunks.
func NewIndexer(files *Filesystem, kb Knowledge, words, overlap int) *Indexer {
	return &Indexer{files: files, kb: kb, words: words, overlap: overlap}
}

// Capability returns the index_file capability.
func (ix *Indexer) Capability() capability.Func {
	return capability.Func{
		FuncName: "index_file",
		FuncDescription: "Add a file or directory to the knowledge base so later conversations can draw on it, " +
			"search the knowledge base, or report how many documents it holds.",
		Schema: capability.SchemaFor[indexArgs](),
		Fn: func(ctx context.Context, args string) (string, error) {
			parsed := gjson.GetMany(args, "action", "path", "query")
			switch action := parsed[0].String(); action {
			case "index":
				return ix.index(ctx, parsed[1].String())
			case "search":
				return ix.search(ctx, parsed[2].String())
			case "stats", "":
				n, err := ix.kb.Count(ctx)
				if err != nil {
					return "", fmt.Errorf("counting documents: %w", err)
				}
				return fmt.Sprintf("Knowledge base: %d documents indexed", n), nil
			default:
				return "", fmt.Errorf("unknown action %q, use index, search or stats", action)
			}
		},
	}
}

func (ix *Indexer) index(ctx context.Context, arg string) (string, error) {
	path, err := ix.files.resolve(arg)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("path not found: %s", arg)
	}
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		n, err := ix.indexFile(ctx, path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Indexed %s (%d chunks)", ix.source(path), n), nil
	}

	var files, chunks int
	var failures []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			failures = append(failures, werr.Error())
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != path && (strings.HasPrefix(name, ".") || skippedDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !indexable(name) {
			return nil
		}
		if files >= indexMaxFiles {
			return filepath.SkipAll
		}
		n, err := ix.indexFile(ctx, p)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", ix.source(p), err))
			return nil
		}
		files++
		chunks += n
		return nil
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Indexed %d files (%d chunks) from %s", files, chunks, ix.source(path))
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\n%d errors:", len(failures))
		for _, f := range failures[:min(len(failures), indexMaxErrors)] {
			fmt.Fprintf(&b, "\n  - %s", f)
		}
	}
	return b.String(), nil
}

func (ix *Indexer) indexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return 0, nil
	}
	ids, err := ix.kb.IndexChunked(ctx, ix.source(path), string(data), ix.words, ix.overlap)
	if err != nil {
		return 0, fmt.Errorf("indexing: %w", err)
	}
	return len(ids), nil
}

func (ix *Indexer) search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is required")
	}
	docs, err := ix.kb.Search(ctx, query, indexSearchLimit)
	if err != nil {
		return "", fmt.Errorf("searching knowledge: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Sprintf("No results for %q", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:\n", len(docs))
	for i, d := range docs {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, d.Source, strings.ReplaceAll(clip(d.Content, indexPreviewRunes), "\n", "\n   "))
	}
	return b.String(), nil
}

// source names a document by its path inside the workspace when it has one.
func (ix *Indexer) source(path string) string {
	if ix.files.Workspace == "" {
		return path
	}
	root, err := filepath.EvalSymlinks(ix.files.Workspace)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func indexable(name string) bool {
	lower := strings.ToLower(name)
	return indexedExts[filepath.Ext(lower)] || indexedNames[lower]
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
