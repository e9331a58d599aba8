package store

import (
	"context"
	"errors"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// ErrNoKnowledge is returned by backends that do not index documents.
var ErrNoKnowledge = errors.New("knowledge documents require the sqlite store")

// Store is everything the rest of zenclaw needs from persistence.
type Store interface {
	GetHistory(ctx context.Context, sessionKey string, limit int) ([]domain.Message, error)
	SaveTurn(ctx context.Context, sessionKey, userMessage, assistantResponse string) error
	SaveMessage(ctx context.Context, sessionKey string, msg domain.Message) error
	ClearHistory(ctx context.Context, sessionKey string) error

	SaveFact(ctx context.Context, key, value string) error
	GetFact(ctx context.Context, key string) (string, bool, error)
	SearchFacts(ctx context.Context, query string, limit int) ([]domain.Fact, error)

	// SearchKnowledge renders the best matching documents as prompt context,
	// or returns "" when nothing matches.
	SearchKnowledge(ctx context.Context, query string, limit int) (string, error)

	Close() error
}

// SQLite is the durable Store.
type SQLite struct {
	*HistoryStore
	*FactStore
	knowledge *KnowledgeStore
	db        *DB
}

// OpenSQLite opens the database at path and returns a Store over it.
func OpenSQLite(path string, log *logging.Logger) (*SQLite, error) {
	db, err := Open(path, log)
	if err != nil {
		return nil, err
	}
	return NewSQLite(db), nil
}

// NewSQLite builds a Store over an already opened database.
func NewSQLite(db *DB) *SQLite {
	return &SQLite{
		HistoryStore: NewHistoryStore(db),
		FactStore:    NewFactStore(db),
		knowledge:    NewKnowledgeStore(db),
		db:           db,
	}
}

// Knowledge returns the document index.
func (s *SQLite) Knowledge() *KnowledgeStore { return s.knowledge }

// SearchKnowledge implements Store.
func (s *SQLite) SearchKnowledge(ctx context.Context, query string, limit int) (string, error) {
	return s.knowledge.BuildContext(ctx, query, limit)
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Memory)(nil)
)
