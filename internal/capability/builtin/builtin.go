// Package builtin provides the capabilities zenclaw ships with: shell
// execution, workspace-confined file access, host and environment
// inspection, web fetching, a small key/value memory and knowledge indexing.
package builtin

import (
	"context"
	"net/http"
	"time"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// FactStore is the persistence the remember and recall capabilities need.
type FactStore interface {
	SaveFact(ctx context.Context, key, value string) error
	GetFact(ctx context.Context, key string) (string, bool, error)
	SearchFacts(ctx context.Context, query string, limit int) ([]domain.Fact, error)
}

// Options selects and tunes the builtin capabilities.
type Options struct {
	// Workspace confines file capabilities and is the shell's default directory.
	Workspace string

	ShellEnabled bool
	ShellTimeout time.Duration

	FetchMaxChars int
	HTTPClient    *http.Client

	// Facts enables remember and recall when set.
	Facts FactStore

	// Knowledge enables index_file when set.
	Knowledge    Knowledge
	ChunkWords   int
	ChunkOverlap int
}

// RegisterAll registers every builtin enabled by opts.
func RegisterAll(reg *capability.Registry, opts Options, log *logging.Logger) {
	l := log.Sub("builtin")

	if opts.ShellEnabled {
		reg.Register(NewShell(opts.Workspace, opts.ShellTimeout))
	}

	fs := NewFilesystem(opts.Workspace)
	reg.Register(fs.ReadFile())
	reg.Register(fs.WriteFile())
	reg.Register(fs.EditFile())
	reg.Register(fs.ListDir())

	reg.Register(NewSystemInfo())
	reg.Register(NewEnv())
	reg.Register(NewWebFetch(opts.HTTPClient, opts.FetchMaxChars))

	if opts.Facts != nil {
		reg.Register(NewRemember(opts.Facts))
		reg.Register(NewRecall(opts.Facts))
	}
	if opts.Knowledge != nil {
		reg.Register(NewIndexer(fs, opts.Knowledge, opts.ChunkWords, opts.ChunkOverlap).Capability())
	}

	l.Debug().Strs("capabilities", reg.Names()).Msg("builtin capabilities registered")
}
