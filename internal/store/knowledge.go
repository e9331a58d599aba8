package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Document is one indexed piece of knowledge.
type Document struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Rank      float64   `json:"rank,omitempty"` // FTS5 rank score (search results only)
}

// KnowledgeStore indexes documents for full-text retrieval via SQLite FTS5.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a knowledge store using the given database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Index stores one document and returns its id.
func (k *KnowledgeStore) Index(ctx context.Context, source, content, metadata string) (int64, error) {
	res, err := k.db.sql.ExecContext(ctx,
		`INSERT INTO documents (source, content, metadata, created_at) VALUES (?, ?, ?, ?)`,
		source, content, metadata, time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("indexing %s: %w", source, err)
	}
	return res.LastInsertId()
}

// IndexChunked splits text into overlapping word windows and indexes each one,
// tagging it "chunk:i/n".
func (k *KnowledgeStore) IndexChunked(ctx context.Context, source, text string, words, overlap int) ([]int64, error) {
	chunks := ChunkText(text, words, overlap)
	ids := make([]int64, 0, len(chunks))
	for i, chunk := range chunks {
		id, err := k.Index(ctx, source, chunk, fmt.Sprintf("chunk:%d/%d", i+1, len(chunks)))
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	k.db.log.Debug().Str("source", source).Int("chunks", len(ids)).Msg("document indexed")
	return ids, nil
}

// Search returns documents matching query, best first.
func (k *KnowledgeStore) Search(ctx context.Context, query string, limit int) ([]Document, error) {
	match := matchExpression(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := k.db.sql.QueryContext(ctx,
		`SELECT d.id, d.source, d.content, d.metadata, d.created_at, rank
		 FROM documents_fts
		 JOIN documents d ON d.id = documents_fts.rowid
		 WHERE documents_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var createdAt string
		if err := rows.Scan(&doc.ID, &doc.Source, &doc.Content, &doc.Metadata, &createdAt, &doc.Rank); err != nil {
			return nil, err
		}
		doc.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// BuildContext renders the best matches as a prompt section, or "" when
// nothing matches.
func (k *KnowledgeStore) BuildContext(ctx context.Context, query string, limit int) (string, error) {
	docs, err := k.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("## Relevant Context\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&b, "### Source %d: %s\n%s\n\n", i+1, doc.Source, doc.Content)
	}
	return b.String(), nil
}

// Count returns the number of indexed documents.
func (k *KnowledgeStore) Count(ctx context.Context) (int, error) {
	var n int
	err := k.db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// DeleteBySource removes every document indexed from source.
func (k *KnowledgeStore) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res, err := k.db.sql.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// matchExpression turns free text into an FTS5 query that ORs quoted terms,
// so punctuation in user input never reaches the FTS5 parser.
func matchExpression(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}

// ChunkText splits text into windows of size words that overlap by overlap words.
// Text shorter than one window comes back as a single chunk.
func ChunkText(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if size <= 0 || len(words) <= size {
		return []string{strings.Join(words, " ")}
	}

	step := size - overlap
	switch {
	case overlap < 0:
		step = size
	case step <= 0:
		step = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
	}
	return chunks
}
